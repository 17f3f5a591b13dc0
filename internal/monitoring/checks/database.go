package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/andcoolsystems/eldraxis/internal/database"
	"github.com/andcoolsystems/eldraxis/internal/monitoring"
)

// Database returns a readiness probe that pings the skin store's database.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "database not configured",
				Duration: time.Since(start),
			}
		}
		return monitoring.ResultFromError("database", database.Ping(ctx, db), time.Since(start))
	})
}
