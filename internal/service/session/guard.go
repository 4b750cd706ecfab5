package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// MarkerStore holds the per-actor "current ride" pointer
type MarkerStore interface {
	Pin(ctx context.Context, actorID, rideID uuid.UUID) error
	// Clear with a non-nil rideID removes the marker only while it points at rideID.
	Clear(ctx context.Context, actorID, rideID uuid.UUID) error
	Get(ctx context.Context, actorID uuid.UUID) (uuid.UUID, bool, error)
}

// ActiveRideFinder is the read the guard needs from the ride store
type ActiveRideFinder interface {
	GetActiveRideByActor(ctx context.Context, actorID uuid.UUID) (*ride.Ride, error)
}

// State is an actor's pin state
type State string

const (
	StateFree   State = "free"
	StatePinned State = "pinned"
)

// EntryContext is an authenticated (or anonymous) navigation attempt
type EntryContext struct {
	ActorID       uuid.UUID
	Role          ride.Role
	Authenticated bool
	Blocked       bool
	Destination   string
}

// Guard pins actors to their non-terminal ride and gates navigation
type Guard struct {
	rides   ActiveRideFinder
	markers MarkerStore
	logger  *logger.Logger
}

// NewGuard creates a session guard
func NewGuard(rides ActiveRideFinder, markers MarkerStore, log *logger.Logger) *Guard {
	return &Guard{rides: rides, markers: markers, logger: log}
}

// Resolve evaluates one route entry. The active ride always comes from the ride store;
// the marker is corrected when it disagrees.
func (g *Guard) Resolve(ctx context.Context, ec EntryContext) (EntryDecision, error) {
	req := EntryRequest{
		Role:          ec.Role,
		Authenticated: ec.Authenticated,
		Blocked:       ec.Blocked,
		Destination:   ec.Destination,
	}
	if !ec.Authenticated || ec.Blocked {
		return ResolveEntryView(req), nil
	}

	active, err := g.activeRide(ctx, ec.ActorID)
	if err != nil {
		return EntryDecision{}, err
	}
	if active != nil {
		req.ActiveRideID = active.ID
	}
	g.reconcile(ctx, ec.ActorID, active)

	return ResolveEntryView(req), nil
}

// State reports whether the actor is currently pinned to a ride
func (g *Guard) State(ctx context.Context, actorID uuid.UUID) (State, error) {
	_, ok, err := g.markers.Get(ctx, actorID)
	if err != nil {
		return "", err
	}
	if ok {
		return StatePinned, nil
	}
	return StateFree, nil
}

// OnRideClosed frees the actor. Freeing a free actor is a no-op.
func (g *Guard) OnRideClosed(ctx context.Context, actorID uuid.UUID) error {
	return g.markers.Clear(ctx, actorID, uuid.Nil)
}

// HandleRideEvent pins both parties on non-terminal events and frees them on close
func (g *Guard) HandleRideEvent(ctx context.Context, ev ride.Event) error {
	var errs []error
	for _, actorID := range ev.Parties() {
		var err error
		if ev.Closed() {
			err = g.markers.Clear(ctx, actorID, ev.RideID)
		} else {
			err = g.markers.Pin(ctx, actorID, ev.RideID)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Guard) activeRide(ctx context.Context, actorID uuid.UUID) (*ride.Ride, error) {
	active, err := g.rides.GetActiveRideByActor(ctx, actorID)
	if errors.Is(err, ride.ErrRideNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup active ride: %w", err)
	}
	return active, nil
}

func (g *Guard) reconcile(ctx context.Context, actorID uuid.UUID, active *ride.Ride) {
	pinned, ok, err := g.markers.Get(ctx, actorID)
	if err != nil {
		g.logger.Warn("Failed to read ride marker", logger.UUID("actor_id", actorID), logger.Err(err))
		return
	}

	switch {
	case active != nil && (!ok || pinned != active.ID):
		err = g.markers.Pin(ctx, actorID, active.ID)
	case active == nil && ok:
		g.logger.Warn("Clearing stale ride marker",
			logger.UUID("actor_id", actorID),
			logger.UUID("ride_id", pinned),
		)
		err = g.markers.Clear(ctx, actorID, pinned)
	}
	if err != nil {
		g.logger.Warn("Failed to reconcile ride marker", logger.UUID("actor_id", actorID), logger.Err(err))
	}
}
