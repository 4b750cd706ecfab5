package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// RideRepository is a process-local ride store. One lock guards every ride so the
// single-active-ride check and the write it protects are atomic.
type RideRepository struct {
	mu     sync.RWMutex
	rides  map[uuid.UUID]*ride.Ride
	events map[uuid.UUID][]ride.Event
}

// NewRideRepository creates an empty store
func NewRideRepository() *RideRepository {
	return &RideRepository{
		rides:  make(map[uuid.UUID]*ride.Ride),
		events: make(map[uuid.UUID][]ride.Event),
	}
}

// Create stores a new ride
func (m *RideRepository) Create(ctx context.Context, r *ride.Ride, ev ride.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeLocked(r.RiderID, uuid.Nil) != nil {
		return ride.ErrActorBusy
	}
	m.rides[r.ID] = r.Clone()
	m.events[r.ID] = append(m.events[r.ID], ev)
	return nil
}

// GetByID returns a copy of the stored ride
func (m *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rides[id]
	if !ok {
		return nil, ride.ErrRideNotFound
	}
	return r.Clone(), nil
}

// CompareAndSwap replaces the ride when its version still matches
func (m *RideRepository) CompareAndSwap(ctx context.Context, next *ride.Ride, expectedVersion int, ev ride.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.rides[next.ID]
	if !ok {
		return ride.ErrRideNotFound
	}
	if current.Version != expectedVersion {
		return ride.ErrVersionConflict
	}
	if next.DriverID != nil && next.IsActive() && current.DriverID == nil {
		if m.activeLocked(*next.DriverID, next.ID) != nil {
			return ride.ErrActorBusy
		}
	}

	m.rides[next.ID] = next.Clone()
	m.events[next.ID] = append(m.events[next.ID], ev)
	return nil
}

// SetRating writes one rating field if it is unset
func (m *RideRepository) SetRating(ctx context.Context, id uuid.UUID, field ride.RatingField, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rides[id]
	if !ok {
		return ride.ErrRideNotFound
	}
	if r.Status != ride.StatusCompleted {
		return ride.ErrRideNotCompleted
	}

	var slot *int
	switch field {
	case ride.RatingFieldRider:
		slot = &r.History.RiderRating
	case ride.RatingFieldDriver:
		slot = &r.History.DriverRating
	default:
		return ride.ErrInvalidRating
	}
	if *slot != 0 {
		return ride.ErrAlreadyRated
	}
	*slot = value
	return nil
}

// GetActiveRideByActor finds the non-terminal ride the actor is party to
func (m *RideRepository) GetActiveRideByActor(ctx context.Context, actorID uuid.UUID) (*ride.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r := m.activeLocked(actorID, uuid.Nil); r != nil {
		return r.Clone(), nil
	}
	return nil, ride.ErrRideNotFound
}

// ListByActor lists rides where the actor is rider or driver, newest first
func (m *RideRepository) ListByActor(ctx context.Context, actorID uuid.UUID, page ride.Page) ([]*ride.Ride, error) {
	return m.list(page, func(r *ride.Ride) bool { return r.IsParty(actorID) }), nil
}

// ListAll lists every ride, newest first
func (m *RideRepository) ListAll(ctx context.Context, page ride.Page) ([]*ride.Ride, error) {
	return m.list(page, func(*ride.Ride) bool { return true }), nil
}

// ListByStatus lists rides in status, newest first
func (m *RideRepository) ListByStatus(ctx context.Context, status ride.Status, page ride.Page) ([]*ride.Ride, error) {
	return m.list(page, func(r *ride.Ride) bool { return r.Status == status }), nil
}

// Events returns the transition log of a ride
func (m *RideRepository) Events(id uuid.UUID) []ride.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ride.Event, len(m.events[id]))
	copy(out, m.events[id])
	return out
}

func (m *RideRepository) activeLocked(actorID, except uuid.UUID) *ride.Ride {
	for id, r := range m.rides {
		if id != except && r.IsActive() && r.IsParty(actorID) {
			return r
		}
	}
	return nil
}

func (m *RideRepository) list(page ride.Page, keep func(*ride.Ride) bool) []*ride.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*ride.Ride, 0)
	for _, r := range m.rides {
		if keep(r) {
			matched = append(matched, r.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if page.Offset >= len(matched) {
		return []*ride.Ride{}
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && page.Limit < len(matched) {
		matched = matched[:page.Limit]
	}
	return matched
}
