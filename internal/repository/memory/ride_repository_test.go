package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

func newRequested(riderID uuid.UUID, createdAt time.Time) (*ride.Ride, ride.Event) {
	r := &ride.Ride{
		ID:          uuid.New(),
		Status:      ride.StatusRequested,
		RiderID:     riderID,
		VehicleType: ride.VehicleEconomy,
		Passengers:  1,
		Version:     1,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	r.Timeline.Record(ride.StatusRequested, createdAt)
	return r, ride.Event{RideID: r.ID, To: ride.StatusRequested, Action: ride.ActionRequest, RiderID: riderID}
}

func accept(r *ride.Ride, driverID uuid.UUID) *ride.Ride {
	next := r.Clone()
	next.Status = ride.StatusAccepted
	next.DriverID = &driverID
	next.Version = r.Version + 1
	return next
}

func TestCreate_RejectsSecondActiveRide(t *testing.T) {
	repo := NewRideRepository()
	ctx := context.Background()
	riderID := uuid.New()

	first, ev := newRequested(riderID, time.Now())
	require.NoError(t, repo.Create(ctx, first, ev))

	second, ev := newRequested(riderID, time.Now())
	assert.ErrorIs(t, repo.Create(ctx, second, ev), ride.ErrActorBusy)
}

func TestGetByID_ReturnsCopy(t *testing.T) {
	repo := NewRideRepository()
	ctx := context.Background()
	r, ev := newRequested(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, r, ev))

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	got.Status = ride.StatusCompleted

	again, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusRequested, again.Status)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ride.ErrRideNotFound)
}

func TestCompareAndSwap(t *testing.T) {
	ctx := context.Background()

	t.Run("stale version", func(t *testing.T) {
		repo := NewRideRepository()
		r, ev := newRequested(uuid.New(), time.Now())
		require.NoError(t, repo.Create(ctx, r, ev))

		next := accept(r, uuid.New())
		require.NoError(t, repo.CompareAndSwap(ctx, next, 1, ride.Event{RideID: r.ID}))
		assert.ErrorIs(t, repo.CompareAndSwap(ctx, accept(r, uuid.New()), 1, ride.Event{}), ride.ErrVersionConflict)
		assert.Len(t, repo.Events(r.ID), 2)
	})

	t.Run("driver already busy", func(t *testing.T) {
		repo := NewRideRepository()
		driverID := uuid.New()

		a, ev := newRequested(uuid.New(), time.Now())
		require.NoError(t, repo.Create(ctx, a, ev))
		b, ev := newRequested(uuid.New(), time.Now())
		require.NoError(t, repo.Create(ctx, b, ev))

		require.NoError(t, repo.CompareAndSwap(ctx, accept(a, driverID), 1, ride.Event{}))
		assert.ErrorIs(t, repo.CompareAndSwap(ctx, accept(b, driverID), 1, ride.Event{}), ride.ErrActorBusy)
	})

	t.Run("missing ride", func(t *testing.T) {
		repo := NewRideRepository()
		r, _ := newRequested(uuid.New(), time.Now())
		assert.ErrorIs(t, repo.CompareAndSwap(ctx, r, 1, ride.Event{}), ride.ErrRideNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		repo := NewRideRepository()
		r, ev := newRequested(uuid.New(), time.Now())
		require.NoError(t, repo.Create(ctx, r, ev))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, repo.CompareAndSwap(cctx, accept(r, uuid.New()), 1, ride.Event{}), context.Canceled)

		got, err := repo.GetByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, ride.StatusRequested, got.Status)
	})
}

func TestSetRating(t *testing.T) {
	ctx := context.Background()
	repo := NewRideRepository()
	r, ev := newRequested(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, r, ev))

	assert.ErrorIs(t, repo.SetRating(ctx, r.ID, ride.RatingFieldRider, 5), ride.ErrRideNotCompleted)

	done := accept(r, uuid.New())
	done.Status = ride.StatusCompleted
	require.NoError(t, repo.CompareAndSwap(ctx, done, 1, ride.Event{}))

	require.NoError(t, repo.SetRating(ctx, r.ID, ride.RatingFieldRider, 5))
	assert.ErrorIs(t, repo.SetRating(ctx, r.ID, ride.RatingFieldRider, 3), ride.ErrAlreadyRated)
	require.NoError(t, repo.SetRating(ctx, r.ID, ride.RatingFieldDriver, 4))

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.History{RiderRating: 5, DriverRating: 4}, got.History)

	assert.ErrorIs(t, repo.SetRating(ctx, uuid.New(), ride.RatingFieldRider, 5), ride.ErrRideNotFound)
}

func TestListing_NewestFirstWithPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewRideRepository()
	driverID := uuid.New()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		r, ev := newRequested(uuid.New(), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, r, ev))
		ids = append(ids, r.ID)

		done := accept(r, driverID)
		done.Status = ride.StatusCompleted
		require.NoError(t, repo.CompareAndSwap(ctx, done, 1, ride.Event{}))
	}
	open, ev := newRequested(uuid.New(), base.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, open, ev))

	history, err := repo.ListByActor(ctx, driverID, ride.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[1], history[1].ID)

	rest, err := repo.ListByActor(ctx, driverID, ride.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)

	all, err := repo.ListAll(ctx, ride.Page{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	requested, err := repo.ListByStatus(ctx, ride.StatusRequested, ride.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, requested, 1)
	assert.Equal(t, open.ID, requested[0].ID)

	empty, err := repo.ListAll(ctx, ride.Page{Limit: 10, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetActiveRideByActor(t *testing.T) {
	ctx := context.Background()
	repo := NewRideRepository()
	riderID, driverID := uuid.New(), uuid.New()

	_, err := repo.GetActiveRideByActor(ctx, riderID)
	assert.ErrorIs(t, err, ride.ErrRideNotFound)

	r, ev := newRequested(riderID, time.Now())
	require.NoError(t, repo.Create(ctx, r, ev))
	require.NoError(t, repo.CompareAndSwap(ctx, accept(r, driverID), 1, ride.Event{}))

	got, err := repo.GetActiveRideByActor(ctx, driverID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}
