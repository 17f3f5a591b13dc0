package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andcoolsystems/eldraxis/internal/app"
	"github.com/andcoolsystems/eldraxis/internal/handlers"
	"github.com/andcoolsystems/eldraxis/internal/middleware"
	"github.com/andcoolsystems/eldraxis/internal/monitoring"
	"github.com/andcoolsystems/eldraxis/internal/skins"
)

// RouterDeps carries the services the HTTP layer serves.
type RouterDeps struct {
	Skins  *skins.Service
	Search *skins.SearchIndex
	// Health may be nil when health checks are disabled.
	Health *monitoring.HealthManager
	// RateStore backs the rate limiter; nil falls back to process memory.
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers the public
// image, profile, search and operational routes.
func NewRouter(cfg *app.Config, deps RouterDeps) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.Skins == nil || deps.Search == nil {
		return nil, errors.New("skin service and search index must be provided")
	}

	skinHandler, err := handlers.NewSkinHandler(deps.Skins, deps.Search, cfg.Server.PublicURL)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	quiet := []string{"/health", "/health/live", "/health/ready"}
	if cfg.Monitoring.Prometheus.Enabled {
		quiet = append(quiet, cfg.Monitoring.Prometheus.Endpoint)
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(quiet...))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins...))

	registerHealthRoutes(r, cfg, deps.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(cfg.Monitoring.Prometheus.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	public := r.Group("/")
	if cfg.RateLimit.Enabled {
		public.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	registerSkinRoutes(public, skinHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
