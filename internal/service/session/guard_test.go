package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/repository/memory"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

type failingFinder struct{}

func (failingFinder) GetActiveRideByActor(context.Context, uuid.UUID) (*ride.Ride, error) {
	return nil, errors.New("connection refused")
}

func seedRide(t *testing.T, repo *memory.RideRepository, riderID uuid.UUID) *ride.Ride {
	t.Helper()
	now := time.Now().UTC()
	r := &ride.Ride{
		ID:          uuid.New(),
		Status:      ride.StatusRequested,
		RiderID:     riderID,
		VehicleType: ride.VehicleEconomy,
		Passengers:  1,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Create(context.Background(), r, ride.Event{RideID: r.ID, To: ride.StatusRequested}))
	return r
}

func TestGuard_PinsAndFreesFromEvents(t *testing.T) {
	ctx := context.Background()
	markers := memory.NewMarkerStore()
	guard := NewGuard(memory.NewRideRepository(), markers, logger.NewNop())
	riderID, driverID, rideID := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, guard.HandleRideEvent(ctx, ride.Event{RideID: rideID, To: ride.StatusRequested, RiderID: riderID}))
	state, err := guard.State(ctx, riderID)
	require.NoError(t, err)
	assert.Equal(t, StatePinned, state)

	require.NoError(t, guard.HandleRideEvent(ctx, ride.Event{RideID: rideID, To: ride.StatusAccepted, RiderID: riderID, DriverID: &driverID}))
	state, err = guard.State(ctx, driverID)
	require.NoError(t, err)
	assert.Equal(t, StatePinned, state)

	require.NoError(t, guard.HandleRideEvent(ctx, ride.Event{RideID: rideID, To: ride.StatusCompleted, RiderID: riderID, DriverID: &driverID}))
	for _, id := range []uuid.UUID{riderID, driverID} {
		state, err = guard.State(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateFree, state)
	}
}

func TestGuard_OnRideClosedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	markers := memory.NewMarkerStore()
	guard := NewGuard(memory.NewRideRepository(), markers, logger.NewNop())
	actorID := uuid.New()

	require.NoError(t, markers.Pin(ctx, actorID, uuid.New()))
	require.NoError(t, guard.OnRideClosed(ctx, actorID))
	require.NoError(t, guard.OnRideClosed(ctx, actorID))

	state, err := guard.State(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, StateFree, state)
}

func TestGuard_ResolveUsesRideStore(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRideRepository()
	markers := memory.NewMarkerStore()
	guard := NewGuard(repo, markers, logger.NewNop())
	riderID := uuid.New()

	// marker missing but a ride is active: still redirected, marker repaired
	r := seedRide(t, repo, riderID)
	decision, err := guard.Resolve(ctx, EntryContext{ActorID: riderID, Role: ride.RoleRider, Authenticated: true, Destination: "/rider/book"})
	require.NoError(t, err)
	assert.Equal(t, ViewRedirectToActiveRide, decision.View)
	require.NotNil(t, decision.ActiveRideID)
	assert.Equal(t, r.ID, *decision.ActiveRideID)

	pinned, ok, err := markers.Get(ctx, riderID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, r.ID, pinned)
}

func TestGuard_ResolveClearsStaleMarker(t *testing.T) {
	ctx := context.Background()
	markers := memory.NewMarkerStore()
	guard := NewGuard(memory.NewRideRepository(), markers, logger.NewNop())
	riderID := uuid.New()

	require.NoError(t, markers.Pin(ctx, riderID, uuid.New()))

	decision, err := guard.Resolve(ctx, EntryContext{ActorID: riderID, Role: ride.RoleRider, Authenticated: true, Destination: "/rider/book"})
	require.NoError(t, err)
	assert.Equal(t, ViewAllow, decision.View)

	_, ok, err := markers.Get(ctx, riderID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuard_ResolveAnonymousSkipsLookup(t *testing.T) {
	guard := NewGuard(failingFinder{}, memory.NewMarkerStore(), logger.NewNop())

	decision, err := guard.Resolve(context.Background(), EntryContext{Destination: "/rider"})
	require.NoError(t, err)
	assert.Equal(t, ViewRedirectToLogin, decision.View)

	_, err = guard.Resolve(context.Background(), EntryContext{ActorID: uuid.New(), Role: ride.RoleRider, Authenticated: true, Destination: "/rider"})
	assert.Error(t, err)
}
