package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/andcoolsystems/eldraxis/internal/skins"
)

// DefaultPublicURL is the externally visible base used in profile texture links.
const DefaultPublicURL = "https://eldraxis.andcool.ru"

// Rate limit backends.
const (
	RateLimitMemory   = "memory"
	RateLimitDatabase = "database"
	RateLimitRedis    = "redis"
)

// ApplyRuntimeDefaults repairs values that decode fine but cannot be used,
// such as zero ports or negative limits, and rejects values that cannot be
// repaired. It returns the keys it changed so callers can log them.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	changed := make(map[string]bool)
	setInt := func(key string, target *int, fallback int) {
		if *target <= 0 {
			*target = fallback
			changed[key] = true
		}
	}
	setDuration := func(key string, target *time.Duration, fallback time.Duration) {
		if *target <= 0 {
			*target = fallback
			changed[key] = true
		}
	}

	setInt("server.port", &cfg.Server.Port, 8088)
	setDuration("server.read_timeout", &cfg.Server.ReadTimeout, 10*time.Second)
	setDuration("server.write_timeout", &cfg.Server.WriteTimeout, 30*time.Second)

	cfg.Server.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Server.PublicURL), "/")
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = DefaultPublicURL
		changed["server.public_url"] = true
	}
	if err := requireAbsoluteURL("server.public_url", cfg.Server.PublicURL); err != nil {
		return nil, err
	}

	setInt("skins.search_min_fragment", &cfg.Skins.SearchMinFragment, skins.DefaultSearchMinFragment)
	setInt("skins.search_max_take", &cfg.Skins.SearchMaxTake, skins.DefaultSearchMaxTake)
	setInt("skins.head3d_scale", &cfg.Skins.Head3DScale, skins.DefaultHead3DScale)
	if cfg.Skins.Head3DScale > skins.MaxHead3DScale {
		return nil, fmt.Errorf("skins.head3d_scale must be at most %d", skins.MaxHead3DScale)
	}

	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))
	switch cfg.RateLimit.Backend {
	case RateLimitMemory, RateLimitDatabase, RateLimitRedis:
	case "":
		cfg.RateLimit.Backend = RateLimitMemory
		changed["ratelimit.backend"] = true
	default:
		return nil, fmt.Errorf("ratelimit.backend %q is not one of memory, database, redis", cfg.RateLimit.Backend)
	}
	if cfg.RateLimit.Enabled {
		setInt("ratelimit.requests", &cfg.RateLimit.Requests, 100)
		setDuration("ratelimit.window", &cfg.RateLimit.Window, time.Minute)
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
			changed["monitoring.prometheus.endpoint"] = true
		}
		if !strings.HasPrefix(endpoint, "/") {
			endpoint = "/" + endpoint
		}
		cfg.Monitoring.Prometheus.Endpoint = endpoint
	}

	for key, raw := range map[string]string{
		"upstream.profiles_url": cfg.Upstream.ProfilesURL,
		"upstream.sessions_url": cfg.Upstream.SessionsURL,
	} {
		if err := requireAbsoluteURL(key, raw); err != nil {
			return nil, err
		}
	}

	return changed, nil
}

func requireAbsoluteURL(key, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
