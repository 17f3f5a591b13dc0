package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andcoolsystems/eldraxis/internal/database/testutil"
	"github.com/andcoolsystems/eldraxis/internal/models"
)

func newDatabaseStore(t *testing.T, now *time.Time) *DatabaseStore {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	store.now = func() time.Time { return *now }
	return store
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newDatabaseStore(t, &now)
	ctx := context.Background()
	key := RateLimitKey("/skin/:nickname:10.0.0.1")

	count, ttl, err := store.IncrementWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	now = now.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)

	now = now.Add(time.Minute)
	count, ttl, err = store.IncrementWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "expired window restarts")
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newDatabaseStore(t, &now)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, ProfileKey("Notch"), []byte(`{"id":"x"}`), time.Minute))
	require.NoError(t, store.Set(ctx, ProfileKey("Notch"), []byte(`{"id":"y"}`), time.Minute))

	value, ok, err := store.Get(ctx, ProfileKey("notch"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"id":"y"}`, string(value))

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, ProfileKey("notch"))
	require.NoError(t, err)
	require.False(t, ok, "expired entries read as misses")

	require.NoError(t, store.Set(ctx, "forever", []byte("1"), 0))
	require.NoError(t, store.Delete(ctx, "forever", "unknown"))
	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, store.Delete(ctx))
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newDatabaseStore(t, &now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("b"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("c"), 0))

	now = now.Add(time.Minute)
	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	var remaining int64
	require.NoError(t, store.db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}

func TestNilDatabaseStore(t *testing.T) {
	var store *DatabaseStore
	require.Nil(t, NewDatabaseStore(nil))

	_, _, err := store.IncrementWithTTL(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, ErrNotInitialised)
	require.ErrorIs(t, store.Set(context.Background(), "k", nil, 0), ErrNotInitialised)
}
