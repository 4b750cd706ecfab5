package ride

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event records one applied status change
type Event struct {
	RideID     uuid.UUID  `json:"ride_id"`
	From       Status     `json:"from_status,omitempty"`
	To         Status     `json:"to_status"`
	Action     Action     `json:"action"`
	ActorRole  Role       `json:"actor_role"`
	ActorID    uuid.UUID  `json:"actor_id"`
	RiderID    uuid.UUID  `json:"rider_id"`
	DriverID   *uuid.UUID `json:"driver_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Closed reports whether the event moved the ride into a terminal status
func (e Event) Closed() bool {
	return e.To.IsTerminal()
}

// Parties returns the rider and, when assigned, the driver
func (e Event) Parties() []uuid.UUID {
	if e.DriverID == nil {
		return []uuid.UUID{e.RiderID}
	}
	return []uuid.UUID{e.RiderID, *e.DriverID}
}

// RatingField names one of the two History columns
type RatingField string

const (
	RatingFieldRider  RatingField = "rider_rating"
	RatingFieldDriver RatingField = "driver_rating"
)

// Page bounds a history listing
type Page struct {
	Limit  int
	Offset int
}

// Repository is the read/write contract the core needs from storage.
//
// Create must fail with ErrActorBusy when the rider already has a non-terminal ride.
// CompareAndSwap must persist next and ev atomically only if the stored version equals
// expectedVersion; otherwise ErrVersionConflict. When next assigns a driver who is already
// on another non-terminal ride it fails with ErrActorBusy.
// SetRating writes the field only if it is still zero and the ride is completed;
// otherwise ErrAlreadyRated.
type Repository interface {
	Create(ctx context.Context, ride *Ride, ev Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ride, error)
	CompareAndSwap(ctx context.Context, next *Ride, expectedVersion int, ev Event) error
	SetRating(ctx context.Context, id uuid.UUID, field RatingField, value int) error
	GetActiveRideByActor(ctx context.Context, actorID uuid.UUID) (*Ride, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, page Page) ([]*Ride, error)
	ListAll(ctx context.Context, page Page) ([]*Ride, error)
	ListByStatus(ctx context.Context, status Status, page Page) ([]*Ride, error)
}
