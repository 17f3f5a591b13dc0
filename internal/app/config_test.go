package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "https://skins.example.org", cfg.Server.PublicURL)
	require.Equal(t, []string{"https://skins.example.org", "https://launcher.example.org"}, cfg.Server.CORS.AllowedOrigins)
	require.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5432, cfg.Database.Postgres.Port)
	require.Equal(t, 20, cfg.Database.MaxOpenConns)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, time.Minute, cfg.Upstream.ProfileCacheTTL)
	require.Equal(t, "https://api.mojang.com/users/profiles/minecraft/", cfg.Upstream.ProfilesURL)
	require.EqualValues(t, 1<<20, cfg.Upstream.MaxTextureBytes)

	require.Equal(t, 2, cfg.Skins.SearchMinFragment)
	require.Equal(t, 50, cfg.Skins.SearchMaxTake)
	require.Equal(t, 32, cfg.Skins.Head3DScale)

	require.True(t, cfg.RateLimit.Enabled)
	require.Equal(t, 30, cfg.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	require.Equal(t, "redis", cfg.RateLimit.Backend)

	require.Equal(t, "@every 30m", cfg.Maintenance.CollisionSweep)
	require.Equal(t, "@every 15m", cfg.Maintenance.CachePurge)
	require.True(t, cfg.Monitoring.Health.Enabled)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8088, cfg.Server.Port)
	require.Equal(t, DefaultPublicURL, cfg.Server.PublicURL)
	require.Equal(t, []string{"*"}, cfg.Server.CORS.AllowedOrigins)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/eldraxis.sqlite", cfg.Database.Path)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Zero(t, cfg.Upstream.ProfileCacheTTL)
	require.Equal(t, 100, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, "memory", cfg.RateLimit.Backend)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, "@hourly", cfg.Maintenance.CollisionSweep)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("ELDRAXIS_SERVER_PORT", "7000")
	t.Setenv("ELDRAXIS_DATABASE_DRIVER", "mysql")
	t.Setenv("ELDRAXIS_RATELIMIT_WINDOW", "5m")
	t.Setenv("ELDRAXIS_SERVER_CORS_ALLOWED_ORIGINS", "https://a.example.org,https://b.example.org")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, "mysql", cfg.Database.Driver)
	require.Equal(t, 5*time.Minute, cfg.RateLimit.Window)
	require.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.Server.CORS.AllowedOrigins)
}

func TestConfigAdapters(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{
			Driver: " PostgreSQL ",
			Postgres: DBAuthConfig{
				Host: " db.example.com ", Port: 5433, Database: "skins", Username: "eldraxis", Password: "pw",
			},
			MaxOpenConns: 8,
		},
		Cache: CacheConfig{Redis: RedisCacheConfig{Address: " 127.0.0.1:6379 ", DB: 1, Timeout: time.Second}},
		Upstream: UpstreamConfig{
			ProfilesURL: " https://api.example.org/ ",
			SessionsURL: "https://session.example.org/",
			Timeout:     2 * time.Second,
		},
	}

	db := cfg.Database.ConnectionConfig()
	require.Equal(t, "postgres", db.Driver)
	require.Equal(t, "db.example.com", db.Host)
	require.Equal(t, 5433, db.Port)
	require.Equal(t, "skins", db.Name)
	require.Equal(t, "eldraxis", db.User)
	require.Equal(t, 8, db.MaxOpenConns)

	sqlite := DatabaseConfig{Path: " ./data/x.sqlite "}.ConnectionConfig()
	require.Equal(t, "sqlite", sqlite.Driver)
	require.Equal(t, "./data/x.sqlite", sqlite.Path)
	require.Empty(t, sqlite.Host)

	redis := cfg.Cache.RedisClientConfig()
	require.Equal(t, "127.0.0.1:6379", redis.Address)
	require.Equal(t, 1, redis.DB)

	upstream := cfg.Upstream.ClientConfig()
	require.Equal(t, "https://api.example.org/", upstream.ProfilesURL)
	require.Equal(t, 2*time.Second, upstream.Timeout)
}
