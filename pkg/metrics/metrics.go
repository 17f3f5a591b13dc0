package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eldraxis_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// SkinLookups counts orchestrator outcomes (cache_hit|refreshed|not_found|error).
	SkinLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldraxis_skin_lookups_total",
			Help: "Total number of skin lookups by outcome",
		},
		[]string{"result"},
	)

	// UpstreamRequests counts calls to the identity and texture services.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldraxis_upstream_requests_total",
			Help: "Total number of upstream requests",
		},
		[]string{"endpoint", "result"},
	)

	// CollisionRepairs counts actions taken while repairing stale nicknames (renamed|deleted|invalidated).
	CollisionRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldraxis_collision_repairs_total",
			Help: "Total number of collision repair actions",
		},
		[]string{"action"},
	)

	// RefreshesShared counts callers that joined an in-flight refresh instead of starting one.
	RefreshesShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eldraxis_refresh_shared_total",
			Help: "Refresh results shared between concurrent callers",
		},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldraxis_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	// MaintenanceRuns counts background job executions.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eldraxis_maintenance_runs_total",
			Help: "Background maintenance job runs",
		},
		[]string{"job", "result"},
	)
)
