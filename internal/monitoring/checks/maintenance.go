package checks

import (
	"context"
	"strings"
	"time"

	"github.com/andcoolsystems/eldraxis/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// JobSource exposes background job history, typically a maintenance.Cleaner.
type JobSource interface {
	Jobs() []monitoring.JobStatus
}

// Maintenance verifies that background jobs run successfully within maxAge.
// Failing or stale jobs report degraded, never down.
func Maintenance(source JobSource, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}
	if now == nil {
		now = time.Now
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if source == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "maintenance disabled",
				Duration: time.Since(start),
			}
		}

		status := monitoring.StatusUp
		var problems []string
		for _, job := range source.Jobs() {
			switch {
			case job.TotalRuns == 0:
				problems = append(problems, job.Job+": pending first run")
			case job.ConsecutiveFailures > 0:
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": "+job.LastError)
			case now().Sub(job.LastRunAt) > maxAge:
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(problems, "; "),
			Duration: time.Since(start),
		}
	})
}
