package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8088, PublicURL: "https://skins.example.org/", ReadTimeout: time.Second, WriteTimeout: time.Second},
		Upstream: UpstreamConfig{
			ProfilesURL: "https://api.example.org/users/profiles/minecraft/",
			SessionsURL: "https://session.example.org/session/minecraft/profile/",
		},
		Skins:     SkinsConfig{SearchMinFragment: 2, SearchMaxTake: 50, Head3DScale: 16},
		RateLimit: RateLimitConfig{Enabled: true, Requests: 10, Window: time.Minute, Backend: "Redis"},
	}
}

func TestApplyRuntimeDefaultsKeepsValidValues(t *testing.T) {
	cfg := validConfig()

	changed, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, changed)
	require.Equal(t, "https://skins.example.org", cfg.Server.PublicURL)
	require.Equal(t, RateLimitRedis, cfg.RateLimit.Backend)
	require.Equal(t, 2, cfg.Skins.SearchMinFragment)
}

func TestApplyRuntimeDefaultsRepairsZeroValues(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Server.PublicURL = ""
	cfg.Skins = SkinsConfig{}
	cfg.RateLimit = RateLimitConfig{Enabled: true}
	cfg.Monitoring.Prometheus = PrometheusConfig{Enabled: true, Endpoint: "metrics"}

	changed, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Equal(t, 8088, cfg.Server.Port)
	require.Equal(t, DefaultPublicURL, cfg.Server.PublicURL)
	require.Equal(t, 3, cfg.Skins.SearchMinFragment)
	require.Equal(t, 100, cfg.Skins.SearchMaxTake)
	require.Equal(t, 32, cfg.Skins.Head3DScale)
	require.Equal(t, RateLimitMemory, cfg.RateLimit.Backend)
	require.Equal(t, 100, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)

	for _, key := range []string{"server.port", "server.public_url", "skins.head3d_scale", "ratelimit.backend", "ratelimit.window"} {
		require.True(t, changed[key], key)
	}
}

func TestApplyRuntimeDefaultsRejectsUnusableValues(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.Error(t, err)

	cfg := validConfig()
	cfg.RateLimit.Backend = "memcached"
	_, err = ApplyRuntimeDefaults(cfg)
	require.ErrorContains(t, err, "ratelimit.backend")

	cfg = validConfig()
	cfg.Upstream.SessionsURL = "sessionserver"
	_, err = ApplyRuntimeDefaults(cfg)
	require.ErrorContains(t, err, "upstream.sessions_url")

	cfg = validConfig()
	cfg.Skins.Head3DScale = 500
	_, err = ApplyRuntimeDefaults(cfg)
	require.ErrorContains(t, err, "head3d_scale")
}
