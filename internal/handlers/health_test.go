package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andcoolsystems/eldraxis/internal/app"
	"github.com/andcoolsystems/eldraxis/internal/handlers/testutil"
)

func TestHealthEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	body := testutil.DecodeJSON(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, "up", body["status"])
	require.NotContains(t, body, "checks")

	w = env.Get("/health/ready")
	require.Equal(t, http.StatusOK, w.Code)
	body = testutil.DecodeJSON(t, w)
	checks := body["checks"].([]any)
	require.Len(t, checks, 1)
	require.Equal(t, "database", checks[0].(map[string]any)["component"])

	w = env.Get("/health/live")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "up", testutil.DecodeJSON(t, w)["status"])
}

func TestHealthDisabled(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithConfig(func(cfg *app.Config) {
		cfg.Monitoring.Health.Enabled = false
	}))

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := env.Get(path)
		require.Equal(t, http.StatusNotFound, w.Code, path)
		body := testutil.DecodeJSON(t, w)
		require.Equal(t, false, body["success"])
		require.Equal(t, "disabled", body["status"])
	}
}

func TestHealthReportsDatabaseOutage(t *testing.T) {
	env := testutil.NewEnv(t)

	sqlDB, err := env.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := env.Get("/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := testutil.DecodeJSON(t, w)
	require.Equal(t, false, body["success"])
	require.Equal(t, "down", body["status"])
}
