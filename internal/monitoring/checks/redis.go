package checks

import (
	"context"
	"time"

	"github.com/andcoolsystems/eldraxis/internal/monitoring"
)

// RedisPinger represents the minimal interface required to probe a redis connection.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Redis returns a readiness probe for the shared cache. A nil client means
// redis is not configured, which is reported as up.
func Redis(client RedisPinger) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if client == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "redis disabled",
				Duration: time.Since(start),
			}
		}
		result := monitoring.ResultFromError("redis", client.Ping(ctx), time.Since(start))
		if result.Status == monitoring.StatusDown {
			// rate limiting and profile memoisation fail open without redis
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}
