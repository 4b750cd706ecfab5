package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gocomet/ride-lifecycle/pkg/cache"
)

const markerKeyFormat = "actor:%s:current_ride"

// MarkerStore keeps each actor's current ride id in Redis
type MarkerStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewMarkerStore creates a marker store. A zero ttl keeps markers until cleared.
func NewMarkerStore(client *goredis.Client, ttl time.Duration) *MarkerStore {
	return &MarkerStore{client: client, ttl: ttl}
}

// Pin marks actorID as being on rideID
func (s *MarkerStore) Pin(ctx context.Context, actorID, rideID uuid.UUID) error {
	if err := cache.SetWithExpiry(ctx, s.client, markerKey(actorID), rideID.String(), s.ttl); err != nil {
		return fmt.Errorf("pin actor %s: %w", actorID, err)
	}
	return nil
}

// Clear removes the actor's marker. With a non-nil rideID the marker is only removed
// while it still points at that ride, so a late close never unpins a newer ride.
func (s *MarkerStore) Clear(ctx context.Context, actorID, rideID uuid.UUID) error {
	key := markerKey(actorID)
	if rideID == uuid.Nil {
		if err := cache.Delete(ctx, s.client, key); err != nil {
			return fmt.Errorf("clear actor %s: %w", actorID, err)
		}
		return nil
	}
	if _, err := cache.DeleteIfEquals(ctx, s.client, key, rideID.String()); err != nil {
		return fmt.Errorf("clear actor %s: %w", actorID, err)
	}
	return nil
}

// Get returns the pinned ride id, if any
func (s *MarkerStore) Get(ctx context.Context, actorID uuid.UUID) (uuid.UUID, bool, error) {
	val, err := cache.Get(ctx, s.client, markerKey(actorID))
	if errors.Is(err, goredis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("get marker for actor %s: %w", actorID, err)
	}
	rideID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt marker for actor %s: %w", actorID, err)
	}
	return rideID, true, nil
}

func markerKey(actorID uuid.UUID) string {
	return fmt.Sprintf(markerKeyFormat, actorID)
}
