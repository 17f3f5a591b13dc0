package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/andcoolsystems/eldraxis/internal/monitoring"
	"github.com/andcoolsystems/eldraxis/internal/skins"
	"github.com/andcoolsystems/eldraxis/pkg/logger"
	"github.com/andcoolsystems/eldraxis/pkg/metrics"
)

const (
	JobCollisionSweep = "collision_sweep"
	JobCachePurge     = "cache_purge"

	defaultSweepSpec = "@hourly"
	defaultPurgeSpec = "@every 15m"
	defaultJobBudget = 10 * time.Minute
)

// CollisionSweeper repairs every duplicated display name in the skin store.
type CollisionSweeper interface {
	Sweep(ctx context.Context) (skins.CollisionReport, error)
}

// ExpiredPurger drops expired key/value entries.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner runs background maintenance: the collision sweep over cached skins
// and the purge of expired database cache entries.
type Cleaner struct {
	sweeper CollisionSweeper
	purger  ExpiredPurger
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	budget  time.Duration
	jobs    monitoring.JobTracker

	// running serialises jobs so a slow sweep never overlaps the next tick.
	running sync.Mutex

	sweepSchedule string
	purgeSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used to timestamp runs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSweepSchedule overrides the cron expression for the collision sweep.
func WithSweepSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sweepSchedule = spec
		}
	}
}

// WithPurgeSchedule overrides the cron expression for the cache purge.
func WithPurgeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.purgeSchedule = spec
		}
	}
}

// WithJobBudget bounds how long a single scheduled run may take.
func WithJobBudget(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.budget = d
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(sweeper CollisionSweeper, purger ExpiredPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sweeper:       sweeper,
		purger:        purger,
		now:           time.Now,
		budget:        defaultJobBudget,
		sweepSchedule: defaultSweepSpec,
		purgeSchedule: defaultPurgeSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	if cleaner.sweeper != nil {
		cleaner.jobs.Register(JobCollisionSweep)
	}
	if cleaner.purger != nil {
		cleaner.jobs.Register(JobCachePurge)
	}
	return cleaner
}

// Start registers the jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.sweeper == nil && c.purger == nil {
		return nil
	}

	if c.sweeper != nil {
		if _, err := c.cron.AddFunc(c.sweepSchedule, c.scheduled(c.sweep)); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", JobCollisionSweep, err)
		}
	}
	if c.purger != nil {
		if _, err := c.cron.AddFunc(c.purgeSchedule, c.scheduled(c.purge)); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", JobCachePurge, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once
// running jobs have completed.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and aggregates failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.running.Lock()
	defer c.running.Unlock()

	var errs error
	if c.sweeper != nil {
		errs = multierr.Append(errs, c.sweep(ctx))
	}
	if c.purger != nil {
		errs = multierr.Append(errs, c.purge(ctx))
	}
	return errs
}

// Jobs reports the run history of each configured job.
func (c *Cleaner) Jobs() []monitoring.JobStatus {
	return c.jobs.Jobs()
}

func (c *Cleaner) scheduled(job func(context.Context) error) func() {
	return func() {
		c.running.Lock()
		defer c.running.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.budget)
		defer cancel()
		_ = job(ctx)
	}
}

func (c *Cleaner) sweep(ctx context.Context) error {
	report, err := c.sweeper.Sweep(ctx)
	c.record(JobCollisionSweep, err)
	if err != nil {
		c.log.Warn("collision sweep failed", zap.Error(err), zap.Int("checked", report.Checked))
		return fmt.Errorf("%s: %w", JobCollisionSweep, err)
	}
	if report.Changed() {
		c.log.Info("collision sweep repaired records",
			zap.Int("checked", report.Checked),
			zap.Int("renamed", report.Renamed),
			zap.Int("deleted", report.Deleted),
			zap.Int("invalidated", report.Invalidated),
		)
	}
	return nil
}

func (c *Cleaner) purge(ctx context.Context) error {
	removed, err := c.purger.PurgeExpired(ctx)
	c.record(JobCachePurge, err)
	if err != nil {
		c.log.Warn("cache purge failed", zap.Error(err))
		return fmt.Errorf("%s: %w", JobCachePurge, err)
	}
	if removed > 0 {
		c.log.Debug("purged expired cache entries", zap.Int64("removed", removed))
	}
	return nil
}

func (c *Cleaner) record(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()
	c.jobs.Record(job, c.now(), err)
}
