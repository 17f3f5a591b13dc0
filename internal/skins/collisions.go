package skins

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/andcoolsystems/eldraxis/internal/models"
	"github.com/andcoolsystems/eldraxis/internal/mojang"
	"github.com/andcoolsystems/eldraxis/pkg/metrics"
)

// IdentityResolver maps an identifier to the account's current profile.
type IdentityResolver interface {
	Resolve(ctx context.Context, identifier string) (*mojang.Profile, error)
}

// CollisionReport summarises one repair pass.
type CollisionReport struct {
	Checked     int
	Renamed     int
	Deleted     int
	Invalidated int
}

func (r *CollisionReport) merge(o CollisionReport) {
	r.Checked += o.Checked
	r.Renamed += o.Renamed
	r.Deleted += o.Deleted
	r.Invalidated += o.Invalidated
}

// Changed reports whether the pass wrote anything.
func (r CollisionReport) Changed() bool {
	return r.Renamed+r.Deleted+r.Invalidated > 0
}

// CollisionResolver repairs rows that share a display name. Names are not
// stable keys: after a rename a stale row can claim the name of its new owner.
type CollisionResolver struct {
	store    Store
	resolver IdentityResolver
	log      *zap.Logger
}

// NewCollisionResolver builds a resolver. The identity resolver must not be a
// caching one: repairs need the upstream's current answer.
func NewCollisionResolver(store Store, resolver IdentityResolver, log *zap.Logger) *CollisionResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CollisionResolver{store: store, resolver: resolver, log: log}
}

// Resolve re-resolves every record by id. Rows that cannot be resolved are
// deleted, rows whose account changed name are renamed in place. Afterwards
// at most one valid row holds any of the touched names; extras are marked
// invalid, keeping the one that expires last. Per-row failures are collected
// and never stop the pass. Running it twice on the same rows writes nothing
// the second time.
func (c *CollisionResolver) Resolve(ctx context.Context, records []models.SkinRecord) (CollisionReport, error) {
	var (
		report CollisionReport
		errs   error
	)
	names := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		report.Checked++

		profile, err := c.resolver.Resolve(ctx, rec.UUID)
		if err != nil {
			if ctx.Err() != nil {
				return report, multierr.Append(errs, ctx.Err())
			}
			c.log.Info("deleting unresolvable record",
				zap.String("uuid", rec.UUID),
				zap.String("default_nick", rec.DefaultNick),
				zap.Error(err),
			)
			if derr := c.store.Delete(ctx, rec.UUID); derr != nil {
				errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", rec.UUID, derr))
				continue
			}
			report.Deleted++
			metrics.CollisionRepairs.WithLabelValues("deleted").Inc()
			continue
		}

		names[profile.Name] = struct{}{}
		if profile.Name == rec.DefaultNick {
			continue
		}

		c.log.Info("renaming stale record",
			zap.String("uuid", rec.UUID),
			zap.String("from", rec.DefaultNick),
			zap.String("to", profile.Name),
		)
		if err := c.store.Rename(ctx, rec.UUID, profile.Name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rename %s: %w", rec.UUID, err))
			continue
		}
		report.Renamed++
		metrics.CollisionRepairs.WithLabelValues("renamed").Inc()
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		n, err := c.enforceUnique(ctx, name)
		report.Invalidated += n
		errs = multierr.Append(errs, err)
	}

	return report, errs
}

// Sweep repairs every display name currently held by more than one valid row.
func (c *CollisionResolver) Sweep(ctx context.Context) (CollisionReport, error) {
	var report CollisionReport

	names, err := c.store.DuplicateDisplayNames(ctx)
	if err != nil {
		return report, err
	}

	var errs error
	for _, name := range names {
		rows, err := c.store.FindByDisplayName(ctx, name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		r, err := c.Resolve(ctx, rows)
		report.merge(r)
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return report, errs
}

// enforceUnique invalidates all but one valid row holding name.
func (c *CollisionResolver) enforceUnique(ctx context.Context, name string) (int, error) {
	rows, err := c.store.FindByDisplayName(ctx, name)
	if err != nil {
		return 0, err
	}

	valid := rows[:0:0]
	for _, row := range rows {
		if row.Valid {
			valid = append(valid, row)
		}
	}
	if len(valid) < 2 {
		return 0, nil
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if !valid[i].ExpiresAt.Equal(valid[j].ExpiresAt) {
			return valid[i].ExpiresAt.After(valid[j].ExpiresAt)
		}
		return valid[i].UUID < valid[j].UUID
	})

	var (
		invalidated int
		errs        error
	)
	for _, row := range valid[1:] {
		if err := c.store.SetValid(ctx, row.UUID, false); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalidate %s: %w", row.UUID, err))
			continue
		}
		invalidated++
		metrics.CollisionRepairs.WithLabelValues("invalidated").Inc()
		c.log.Info("invalidated duplicate record",
			zap.String("uuid", row.UUID),
			zap.String("default_nick", name),
			zap.String("kept", valid[0].UUID),
		)
	}
	return invalidated, errs
}
