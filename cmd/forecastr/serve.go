package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/forecastr/internal/adapters/config"
	"github.com/selivandex/forecastr/internal/adapters/telegram"
	"github.com/selivandex/forecastr/internal/api"
	"github.com/selivandex/forecastr/internal/featured"
	"github.com/selivandex/forecastr/internal/health"
	"github.com/selivandex/forecastr/internal/scheduler"
	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/worker"
)

const shutdownTimeout = 30 * time.Second

// runServe starts the API, the featured refresh worker and the digest scheduler
func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	notifier := initTelegram(cfg)

	var featuredNotifier featured.Notifier
	if notifier != nil {
		featuredNotifier = notifier
	}

	workers := worker.NewGroup(ctx)
	workers.Add(featured.NewRefreshWorker(a.featured, featuredNotifier), worker.Options{
		Interval: cfg.Featured.CheckInterval,
		Timeout:  cfg.Featured.LockTTL,
	})
	workers.Start()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled && notifier != nil {
		sched, err = scheduler.New(ctx, a.engine, notifier, scheduler.Config{
			Spec:      cfg.Scheduler.DigestSpec,
			Symbols:   cfg.Scheduler.Symbols,
			Category:  cfg.Scheduler.Category,
			DaysAhead: cfg.Scheduler.DaysAhead,
		})
		if err != nil {
			workers.Stop(shutdownTimeout)
			return err
		}
		sched.Start()
	}

	probes := health.NewProbes()
	probes.Add("postgres", a.db)
	if a.ch != nil {
		probes.Add("clickhouse", a.ch)
	}
	if a.redis != nil {
		probes.Add("redis", a.redis)
	}

	server := api.NewServer(a.engine, a.featured, probes, api.Options{
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	probes.SetReady(true)
	logger.Info("forecastr started", zap.Int("port", cfg.HTTP.Port))

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil {
			logger.Error("api server failed", zap.Error(err))
		}
	}

	// Graceful shutdown
	probes.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if stopErr := server.Stop(shutdownCtx); stopErr != nil {
		logger.Error("failed to stop api server", zap.Error(stopErr))
	}
	if sched != nil {
		sched.Stop()
	}
	workers.Stop(shutdownTimeout)

	logger.Info("shutdown complete")
	return err
}

// initTelegram creates the digest notifier; nil when disabled or misconfigured
func initTelegram(cfg *config.Config) *telegram.Notifier {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		return nil
	}

	notifier, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		logger.Warn("failed to initialize telegram notifier", zap.Error(err))
		return nil
	}

	logger.Info("telegram notifier initialized")
	return notifier
}
