package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andcoolsystems/eldraxis/internal/api"
	"github.com/andcoolsystems/eldraxis/internal/app"
	"github.com/andcoolsystems/eldraxis/internal/app/maintenance"
	"github.com/andcoolsystems/eldraxis/internal/cache"
	"github.com/andcoolsystems/eldraxis/internal/database"
	"github.com/andcoolsystems/eldraxis/internal/middleware"
	"github.com/andcoolsystems/eldraxis/internal/mojang"
	"github.com/andcoolsystems/eldraxis/internal/monitoring"
	"github.com/andcoolsystems/eldraxis/internal/monitoring/checks"
	"github.com/andcoolsystems/eldraxis/internal/skins"
	"github.com/andcoolsystems/eldraxis/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	DBCache   *cache.DatabaseStore
	Service   *skins.Service
	Search    *skins.SearchIndex
	Cleaner   *maintenance.Cleaner
	Health    *monitoring.HealthManager
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, caches, the skin engine, background
// jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}
	stack.DBCache = cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	client, err := mojang.NewClient(cfg.Upstream.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise identity client: %w", err)
	}

	store, err := skins.NewGormStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise skin store: %w", err)
	}

	var profileCache cache.Store = stack.DBCache
	if stack.Redis != nil {
		profileCache = stack.Redis
	}
	resolver := skins.NewCachingResolver(client, profileCache, cfg.Upstream.ProfileCacheTTL, logger.WithModule("mojang"))

	// collision repair must see live names, never memoised ones
	collisions := skins.NewCollisionResolver(store, client, logger.WithModule("collisions"))

	stack.Service, err = skins.NewService(store, resolver, client,
		skins.WithCollisionResolver(collisions),
		skins.WithHeadScale(cfg.Skins.Head3DScale),
		skins.WithLogger(logger.WithModule("skins")),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise skin service: %w", err)
	}
	stack.Search = skins.NewSearchIndex(store, cfg.Skins.SearchMinFragment, cfg.Skins.SearchMaxTake)

	var jobs checks.JobSource
	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(collisions, stack.DBCache,
			maintenance.WithSweepSchedule(cfg.Maintenance.CollisionSweep),
			maintenance.WithPurgeSchedule(cfg.Maintenance.CachePurge),
			maintenance.WithJobBudget(cfg.Maintenance.JobBudget),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
		jobs = stack.Cleaner
	}

	if cfg.Monitoring.Health.Enabled {
		stack.Health = monitoring.NewHealthManager(cfg.Monitoring.Health.Timeout)
		stack.Health.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
			return monitoring.ProbeResult{Status: monitoring.StatusUp}
		}))
		stack.Health.RegisterReadiness(checks.Database(stack.DB))

		var pinger checks.RedisPinger
		if stack.Redis != nil {
			pinger = stack.Redis
		}
		stack.Health.RegisterReadiness(checks.Redis(pinger))
		stack.Health.RegisterReadiness(checks.Maintenance(jobs, 0, nil))
	}

	stack.RateStore = selectRateStore(cfg.RateLimit.Backend, stack, log)

	stack.Router, err = api.NewRouter(cfg, api.RouterDeps{
		Skins:     stack.Service,
		Search:    stack.Search,
		Health:    stack.Health,
		RateStore: stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// selectRateStore picks the limiter backend. A redis backend without a
// connection degrades to the database.
func selectRateStore(backend string, stack *runtimeStack, log *zap.Logger) middleware.RateStore {
	switch backend {
	case app.RateLimitRedis:
		if stack.Redis != nil {
			return middleware.NewRedisRateStore(stack.Redis)
		}
		log.Warn("redis rate limiting requested without a redis connection; using the database")
		return middleware.NewDatabaseRateStore(stack.DBCache)
	case app.RateLimitDatabase:
		return middleware.NewDatabaseRateStore(stack.DBCache)
	default:
		return middleware.NewMemoryRateStore()
	}
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
