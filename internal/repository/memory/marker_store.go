package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MarkerStore keeps each actor's current ride id in process memory
type MarkerStore struct {
	mu      sync.Mutex
	markers map[uuid.UUID]uuid.UUID
}

// NewMarkerStore creates an empty marker store
func NewMarkerStore() *MarkerStore {
	return &MarkerStore{markers: make(map[uuid.UUID]uuid.UUID)}
}

// Pin marks actorID as being on rideID
func (s *MarkerStore) Pin(ctx context.Context, actorID, rideID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[actorID] = rideID
	return nil
}

// Clear removes the marker; a non-nil rideID must match the pinned ride
func (s *MarkerStore) Clear(ctx context.Context, actorID, rideID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.markers[actorID]; ok && (rideID == uuid.Nil || current == rideID) {
		delete(s.markers, actorID)
	}
	return nil
}

// Get returns the pinned ride id, if any
func (s *MarkerStore) Get(ctx context.Context, actorID uuid.UUID) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rideID, ok := s.markers[actorID]
	return rideID, ok, nil
}
