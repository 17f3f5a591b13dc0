package api

import (
	"github.com/gin-gonic/gin"

	"github.com/andcoolsystems/eldraxis/internal/app"
	"github.com/andcoolsystems/eldraxis/internal/handlers"
	"github.com/andcoolsystems/eldraxis/internal/monitoring"
)

func registerHealthRoutes(r gin.IRouter, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled {
		manager = nil
	}

	handler := handlers.NewHealthHandler(manager)
	r.GET("/health", handler.Health)
	r.GET("/health/live", handler.Live)
	r.GET("/health/ready", handler.Ready)
}
