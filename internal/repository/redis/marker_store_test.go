package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/ride-lifecycle/pkg/cache"
)

func newTestStore(t *testing.T, ttl time.Duration) (*MarkerStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient(context.Background(), cache.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close(client) })
	return NewMarkerStore(client, ttl), mr
}

func TestMarkerStore_PinGetClear(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)
	actorID, rideID := uuid.New(), uuid.New()

	_, ok, err := store.Get(ctx, actorID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Pin(ctx, actorID, rideID))
	assert.Equal(t, rideID.String(), mustGet(t, mr, "actor:"+actorID.String()+":current_ride"))

	got, ok, err := store.Get(ctx, actorID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rideID, got)

	require.NoError(t, store.Clear(ctx, actorID, rideID))
	_, ok, err = store.Get(ctx, actorID)
	require.NoError(t, err)
	assert.False(t, ok)

	// clearing again is a no-op
	assert.NoError(t, store.Clear(ctx, actorID, rideID))
}

func TestMarkerStore_ClearKeepsNewerRide(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, 0)
	actorID, oldRide, newRide := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, store.Pin(ctx, actorID, newRide))
	require.NoError(t, store.Clear(ctx, actorID, oldRide))

	got, ok, err := store.Get(ctx, actorID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, newRide, got)

	require.NoError(t, store.Clear(ctx, actorID, uuid.Nil))
	_, ok, err = store.Get(ctx, actorID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkerStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, time.Hour)
	actorID := uuid.New()

	require.NoError(t, store.Pin(ctx, actorID, uuid.New()))
	mr.FastForward(2 * time.Hour)

	_, ok, err := store.Get(ctx, actorID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkerStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)
	actorID := uuid.New()

	require.NoError(t, mr.Set("actor:"+actorID.String()+":current_ride", "not-a-uuid"))
	_, _, err := store.Get(ctx, actorID)
	assert.Error(t, err)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
