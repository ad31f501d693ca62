package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/internal/adapters/telegram"
	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// WindowDetector produces trading windows for one symbol
type WindowDetector interface {
	DetectTradingWindows(ctx context.Context, symbol, category string, daysAhead int) ([]models.TradingWindow, error)
}

// Notifier delivers the window digest
type Notifier interface {
	NotifyWindows(ctx context.Context, daysAhead int, windows []telegram.SymbolWindows) error
}

// Config describes the digest job
type Config struct {
	Spec      string
	Symbols   []string
	Category  string
	DaysAhead int
	Timeout   time.Duration
}

// Scheduler runs the trading window digest on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	detector WindowDetector
	notifier Notifier
	cfg      Config
	ctx      context.Context
	log      *zap.Logger
}

// New creates scheduler and registers the digest job
func New(ctx context.Context, detector WindowDetector, notifier Notifier, cfg Config) (*Scheduler, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	s := &Scheduler{
		cron:     cron.New(),
		detector: detector,
		notifier: notifier,
		cfg:      cfg,
		ctx:      ctx,
		log:      logger.Named("scheduler"),
	}
	if _, err := s.cron.AddFunc(cfg.Spec, s.digest); err != nil {
		return nil, fmt.Errorf("register window digest %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.cfg.Spec), zap.Strings("symbols", s.cfg.Symbols))
}

// Stop waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) digest() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.RunDigest(ctx); err != nil {
		s.log.Error("window digest failed", zap.Error(err))
	}
}

// RunDigest detects windows for every configured symbol and sends one digest.
// Symbols that fail are logged and skipped.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	var out []telegram.SymbolWindows
	for _, symbol := range s.cfg.Symbols {
		windows, err := s.detector.DetectTradingWindows(ctx, symbol, s.cfg.Category, s.cfg.DaysAhead)
		if err != nil {
			s.log.Warn("window detection failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if len(windows) == 0 {
			continue
		}
		out = append(out, telegram.SymbolWindows{Symbol: symbol, Windows: windows})
	}

	if len(out) == 0 {
		s.log.Info("no trading windows for digest")
		return nil
	}
	return s.notifier.NotifyWindows(ctx, s.cfg.DaysAhead, out)
}
