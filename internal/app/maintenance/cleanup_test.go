package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/andcoolsystems/eldraxis/internal/cache"
	testutil "github.com/andcoolsystems/eldraxis/internal/database/testutil"
	"github.com/andcoolsystems/eldraxis/internal/models"
	"github.com/andcoolsystems/eldraxis/internal/mojang"
	"github.com/andcoolsystems/eldraxis/internal/skins"
)

type fixedClock struct {
	current time.Time
}

func (c fixedClock) Now() time.Time {
	return c.current
}

type stubSweeper struct {
	calls  atomic.Int32
	report skins.CollisionReport
	err    error
}

func (s *stubSweeper) Sweep(context.Context) (skins.CollisionReport, error) {
	s.calls.Add(1)
	return s.report, s.err
}

type stubPurger struct {
	calls atomic.Int32
	err   error
}

func (p *stubPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 3, p.err
}

func TestCleanerRunOncePurgesExpiredEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := cache.NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, cache.ProfileKey("Notch"), []byte("{}"), time.Minute))
	require.NoError(t, store.Set(ctx, cache.ProfileKey("jeb_"), []byte("{}"), time.Hour))
	require.NoError(t, db.Model(&models.CacheEntry{}).
		Where(&models.CacheEntry{Key: cache.ProfileKey("Notch")}).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	sweeper := &stubSweeper{report: skins.CollisionReport{Checked: 2, Renamed: 1}}
	clock := fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}
	cleaner := NewCleaner(sweeper, store, WithNow(clock.Now))

	require.NoError(t, cleaner.RunOnce(ctx))
	require.EqualValues(t, 1, sweeper.calls.Load())

	var remaining int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)

	jobs := cleaner.Jobs()
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		require.EqualValues(t, 1, job.TotalRuns)
		require.Equal(t, clock.current, job.LastRunAt)
		require.Zero(t, job.ConsecutiveFailures)
	}
}

func TestCleanerRunOnceAggregatesFailures(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("store down")}
	purger := &stubPurger{err: errors.New("table locked")}
	cleaner := NewCleaner(sweeper, purger)

	err := cleaner.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.ErrorContains(t, err, "collision_sweep: store down")
	require.ErrorContains(t, err, "cache_purge: table locked")

	// one failing job does not stop the other
	require.EqualValues(t, 1, purger.calls.Load())
	for _, job := range cleaner.Jobs() {
		require.EqualValues(t, 1, job.ConsecutiveFailures)
	}
}

func TestCleanerSkipsMissingDependencies(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
	require.Empty(t, cleaner.Jobs())
	<-cleaner.Stop().Done()
}

func TestCleanerSchedulesJobs(t *testing.T) {
	sweeper := &stubSweeper{}
	purger := &stubPurger{}
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(sweeper, purger,
		WithCron(scheduler),
		WithSweepSchedule("@every 1h"),
		WithPurgeSchedule("@every 2h"),
	)

	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })
	require.Len(t, scheduler.Entries(), 2)

	for _, entry := range scheduler.Entries() {
		entry.Job.Run()
	}
	require.EqualValues(t, 1, sweeper.calls.Load())
	require.EqualValues(t, 1, purger.calls.Load())
}

func TestCleanerRejectsBadSchedule(t *testing.T) {
	cleaner := NewCleaner(&stubSweeper{}, nil, WithSweepSchedule("every now and then"))
	require.ErrorContains(t, cleaner.Start(), "collision_sweep")
}

func TestCleanerSweepsRealCollisions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := skins.NewGormStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	for _, rec := range []*models.SkinRecord{
		{UUID: "069a79f444e94726a5befca90e38aaf5", Nickname: "notch", DefaultNick: "Notch", ExpiresAt: expires, Valid: true},
		{UUID: "853c80ef3c3749fdaa49938b674adae6", Nickname: "notch", DefaultNick: "Notch", ExpiresAt: expires, Valid: true},
	} {
		require.NoError(t, store.Insert(ctx, rec))
	}

	resolver := skins.NewCollisionResolver(store, renamedResolver{}, nil)
	cleaner := NewCleaner(resolver, nil)
	require.NoError(t, cleaner.RunOnce(ctx))

	dups, err := store.DuplicateDisplayNames(ctx)
	require.NoError(t, err)
	require.Empty(t, dups)
}

type renamedResolver struct{}

func (renamedResolver) Resolve(_ context.Context, identifier string) (*mojang.Profile, error) {
	switch identifier {
	case "069a79f444e94726a5befca90e38aaf5":
		return &mojang.Profile{ID: identifier, Name: "Notch"}, nil
	case "853c80ef3c3749fdaa49938b674adae6":
		return &mojang.Profile{ID: identifier, Name: "jeb_"}, nil
	}
	return nil, mojang.ErrNotFound
}
