package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/forecastr/internal/adapters/clickhouse"
	"github.com/selivandex/forecastr/internal/adapters/config"
	"github.com/selivandex/forecastr/internal/adapters/database"
	"github.com/selivandex/forecastr/internal/adapters/market"
	redisAdapter "github.com/selivandex/forecastr/internal/adapters/redis"
	"github.com/selivandex/forecastr/internal/adapters/store"
	"github.com/selivandex/forecastr/internal/engine"
	"github.com/selivandex/forecastr/internal/featured"
	"github.com/selivandex/forecastr/internal/scoring"
	"github.com/selivandex/forecastr/pkg/logger"
)

// app holds the wired service graph shared by every command
type app struct {
	cfg      *config.Config
	db       *database.DB
	ch       *database.DB
	redis    *redisAdapter.Client
	repo     *store.Repository
	history  *clickhouse.RatingWriter
	engine   *engine.Service
	featured *featured.Manager
}

// initConfig loads configuration and initializes logger
func initConfig(envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// newApp connects infrastructure and builds the engine and featured manager
func newApp(ctx context.Context, cfg *config.Config, migrate bool) (*app, error) {
	weights, err := scoring.LoadWeights(cfg.Engine.WeightsFile)
	if err != nil {
		return nil, err
	}

	db, err := initDatabase(cfg, migrate)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, repo: store.NewRepository(db.DB())}

	a.ch, err = initClickHouse(ctx, cfg)
	if err != nil {
		logger.Warn("ClickHouse not available, using PostgreSQL fallback", zap.Error(err))
		a.ch = nil
	}

	a.redis, err = initRedis(ctx, cfg)
	if err != nil {
		logger.Warn("Redis not available, using in-process lock", zap.Error(err))
		a.redis = nil
	}

	deps := engine.Deps{
		Events:   a.repo,
		Universe: a.repo,
		Cache:    a.repo,
		Levels:   a.repo,
	}

	if a.ch != nil {
		deps.Bars = market.NewRepository(a.ch.DB(), db.DB())
		a.history = clickhouse.NewRatingWriter(clickhouse.NewRepository(a.ch.DB()), cfg.ClickHouse.BatchSize, cfg.ClickHouse.FlushInterval)
		deps.History = a.history
		logger.Info("market repository using ClickHouse")
	} else {
		deps.Bars = market.NewRepository(nil, db.DB())
		logger.Info("market repository using PostgreSQL fallback")
	}

	var locker featured.Locker = redisAdapter.NewMockLocker()
	if a.redis != nil {
		deps.Cache = a.redis.NewRatingCache(a.repo)
		locker = a.redis.NewRefreshLock()
	}

	a.engine = engine.NewService(engineConfig(cfg), deps, weights)
	a.featured = featured.NewManager(a.engine, a.repo, locker, featured.Config{
		TopN:     cfg.Featured.TopN,
		CacheTTL: cfg.Featured.CacheTTL,
		LockTTL:  cfg.Featured.LockTTL,
	})

	logger.Info("engine initialized",
		zap.String("weights", weights.Name),
		zap.Strings("categories", cfg.Engine.Categories),
	)
	return a, nil
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Categories:         cfg.Engine.Categories,
		LookbackDays:       cfg.Engine.LookbackDays,
		ConvergenceHorizon: cfg.Engine.ConvergenceHorizon,
		HorizonMin:         cfg.Engine.HorizonMin,
		HorizonMax:         cfg.Engine.HorizonMax,
		WorkerLimit:        cfg.Engine.WorkerLimit,
		RateLimit:          cfg.Engine.RateLimit,
		WindowLimit:        cfg.Engine.WindowLimit,
	}
}

// Close flushes history and closes connections
func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Error("failed to flush rating history", zap.Error(err))
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.ch != nil {
		a.ch.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	logger.Sync()
}

// initDatabase connects PostgreSQL and optionally applies migrations
func initDatabase(cfg *config.Config, migrate bool) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return db, nil
}

// initClickHouse connects ClickHouse and bootstraps its schema
func initClickHouse(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, fmt.Errorf("ClickHouse disabled in config")
	}

	ch, err := database.NewClickHouse(&cfg.ClickHouse)
	if err != nil {
		return nil, err
	}

	if err := ch.ApplySchema(ctx, cfg.ClickHouse.SchemaPath); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

// initRedis initializes Redis client with Redlock support
func initRedis(ctx context.Context, cfg *config.Config) (*redisAdapter.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, fmt.Errorf("redis disabled in config")
	}

	client, err := redisAdapter.New(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis health check failed: %w", err)
	}

	logger.Info("redis connection established (redlock)",
		zap.String("host", cfg.Redis.Host),
		zap.Int("port", cfg.Redis.Port),
	)
	return client, nil
}
