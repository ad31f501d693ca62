package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/selivandex/forecastr/internal/astro"
	"github.com/selivandex/forecastr/internal/convergence"
	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/internal/scoring"
	"github.com/selivandex/forecastr/internal/windows"
	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// Config holds engine settings
type Config struct {
	Categories         []string
	LookbackDays       int
	ConvergenceHorizon int
	HorizonMin         int
	HorizonMax         int
	WorkerLimit        int
	RateLimit          float64
	WindowLimit        int
}

// DefaultConfig returns standard engine settings
func DefaultConfig() Config {
	return Config{
		Categories:         []string{"equities", "crypto", "forex", "commodities", "rates-macro", "stress"},
		LookbackDays:       400,
		ConvergenceHorizon: 30,
		HorizonMin:         7,
		HorizonMax:         180,
		WorkerLimit:        8,
		RateLimit:          20,
		WindowLimit:        5,
	}
}

// Deps are the collaborators of the engine. Cache and History are optional.
type Deps struct {
	Bars     BarSource
	Events   EventSource
	Universe UniverseSource
	Cache    RatingCache
	History  HistorySink
	Levels   LevelSink
	Clock    Clock
}

// Service composes levels, astro alignment, convergence, scoring and windows
// into the operations consumed by the API, CLI and featured manager.
type Service struct {
	cfg        Config
	deps       Deps
	categories map[string]bool
	limiter    *rate.Limiter

	ind        *indicators.Calculator
	levels     *levels.Calculator
	aggregator *scoring.Aggregator
	detector   *convergence.Detector
	windows    *windows.Detector
	weights    scoring.WeightSet
	log        *zap.Logger

	// eventHorizon is how many days ahead astro events are loaded
	eventHorizon int
}

// NewService creates engine service
func NewService(cfg Config, deps Deps, weights scoring.WeightSet) *Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.WorkerLimit <= 0 {
		cfg.WorkerLimit = 1
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	ind := indicators.NewCalculator()
	lc := levels.NewCalculator(ind)

	cc := convergence.DefaultConfig()
	wc := windows.DefaultConfig()
	if cfg.HorizonMin > 0 {
		cc.MinHorizon = cfg.HorizonMin
		wc.MinHorizon = cfg.HorizonMin
	}
	if cfg.HorizonMax > 0 {
		cc.MaxHorizon = cfg.HorizonMax
		wc.MaxHorizon = cfg.HorizonMax
	}

	categories := make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		categories[c] = true
	}

	return &Service{
		cfg:          cfg,
		deps:         deps,
		categories:   categories,
		limiter:      rate.NewLimiter(limit, cfg.WorkerLimit),
		ind:          ind,
		levels:       lc,
		aggregator:   scoring.NewAggregator(lc, ind, weights),
		detector:     convergence.NewDetector(lc, ind, cc),
		windows:      windows.NewDetector(lc, ind, wc),
		eventHorizon: max(cc.MaxHorizon, wc.MaxHorizon) + cc.ProximityDays,
		weights:      weights,
		log:          logger.Named("engine"),
	}
}

// Categories returns the tracked categories in configured order
func (s *Service) Categories() []string {
	return s.cfg.Categories
}

// ValidateCategory rejects categories that are not configured
func (s *Service) ValidateCategory(category string) error {
	if !s.categories[category] {
		return fmt.Errorf("unknown category %q: %w", category, models.ErrConfiguration)
	}
	return nil
}

// Now returns the engine clock
func (s *Service) Now() time.Time {
	return s.deps.Clock()
}

// snapshot is the immutable per-request astro view
type snapshot struct {
	now     time.Time
	aligner *astro.Aligner
	period  models.IngressPeriod
}

func (s *Service) loadSnapshot(ctx context.Context) (*snapshot, error) {
	now := s.deps.Clock()
	events, err := s.deps.Events.GetAstroEvents(ctx, models.EventFilter{
		From: now.AddDate(0, 0, -s.cfg.LookbackDays),
		To:   now.AddDate(0, 0, s.eventHorizon),
	})
	if err != nil {
		return nil, upstream("load astro events", err)
	}
	aligner := astro.NewAligner(events, s.weights.Favorability)
	return &snapshot{now: now, aligner: aligner, period: aligner.IngressPeriod(now)}, nil
}

// CurrentIngressPeriod returns the active ingress period
func (s *Service) CurrentIngressPeriod(ctx context.Context) (models.IngressPeriod, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return models.IngressPeriod{}, err
	}
	return snap.period, nil
}

func (s *Service) loadBars(ctx context.Context, symbol string, now time.Time) ([]models.Bar, error) {
	bars, err := s.deps.Bars.GetBars(ctx, symbol, now.AddDate(0, 0, -s.cfg.LookbackDays), now)
	if err != nil {
		return nil, upstream("load bars for "+symbol, err)
	}
	return bars, nil
}

// GetRating returns the rating for one symbol. A cached rating for the current
// ingress period is returned as-is; missing history yields a neutral rating.
func (s *Service) GetRating(ctx context.Context, symbol, category string) (*models.TickerRating, error) {
	if err := s.ValidateCategory(category); err != nil {
		return nil, err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.rate(ctx, snap, symbol, category)
}

func (s *Service) rate(ctx context.Context, snap *snapshot, symbol, category string) (*models.TickerRating, error) {
	period := snap.period.Key()
	if s.deps.Cache != nil {
		cached, ok, err := s.deps.Cache.GetRating(ctx, symbol, period)
		if err != nil {
			s.log.Warn("rating cache read failed", zap.String("symbol", symbol), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	bars, err := s.loadBars(ctx, symbol, snap.now)
	if err != nil && !errors.Is(err, models.ErrMissingData) {
		return nil, err
	}
	if len(bars) == 0 {
		r := models.NeutralRating(symbol, category, "no price history available")
		r.IngressPeriod = period
		r.CalculatedAt = snap.now
		return r, nil
	}

	forecast, ok := s.detector.Detect(convergence.Input{
		Symbol:   symbol,
		Category: category,
		Bars:     bars,
		Horizon:  s.cfg.ConvergenceHorizon,
		Aligner:  snap.aligner,
	})
	if !ok {
		forecast = nil
	}

	rating := s.aggregator.Rate(scoring.Input{
		Symbol:      symbol,
		Category:    category,
		Bars:        bars,
		Convergence: forecast,
		Aligner:     snap.aligner,
		Now:         snap.now,
	})
	rating.IngressPeriod = period

	if s.deps.Cache != nil {
		if err := s.deps.Cache.PutRating(ctx, rating); err != nil {
			s.log.Warn("rating cache write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	if s.deps.History != nil {
		s.deps.History.Record(rating)
	}
	return rating, nil
}

// GetLevels computes the level set of a symbol using the seasonal anchors of its history
func (s *Service) GetLevels(ctx context.Context, symbol, category string) (*levels.LevelSet, error) {
	if err := s.ValidateCategory(category); err != nil {
		return nil, err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	bars, err := s.loadBars(ctx, symbol, snap.now)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return &levels.LevelSet{}, nil
	}

	set := s.levels.Calculate(bars, levels.Options{
		Now:     snap.now,
		Anchors: snap.aligner.Anchors(bars[0].Time, snap.now),
	})
	if s.deps.Levels != nil {
		if err := s.deps.Levels.SaveLevels(ctx, symbol, snap.period.Key(), set); err != nil {
			s.log.Warn("level snapshot write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return set, nil
}

// GetBatchRatings rates the category universe and keeps ratings with total >= minScore,
// sorted by total descending. Per-symbol failures are reported, not fatal.
func (s *Service) GetBatchRatings(ctx context.Context, category string, minScore float64) (*models.BatchResult, error) {
	if err := s.ValidateCategory(category); err != nil {
		return nil, err
	}
	symbols, err := s.universe(ctx, category)
	if err != nil {
		return nil, err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	ratings := make([]*models.TickerRating, len(symbols))
	errs := s.fanOut(ctx, symbols, func(ctx context.Context, i int, symbol string) error {
		r, err := s.rate(ctx, snap, symbol, category)
		if err != nil {
			return err
		}
		ratings[i] = r
		return nil
	})

	result := &models.BatchResult{Ratings: []*models.TickerRating{}, Warnings: []string{}, Errors: []string{}}
	for _, r := range ratings {
		if r == nil {
			continue
		}
		for _, w := range r.Warnings {
			result.Warnings = append(result.Warnings, r.Symbol+": "+w)
		}
		if r.Scores.Total >= minScore {
			result.Ratings = append(result.Ratings, r)
		}
	}
	for _, e := range multierr.Errors(errs) {
		result.Errors = append(result.Errors, e.Error())
	}
	SortRatings(result.Ratings)
	return result, nil
}

// SortRatings orders by total descending with symbol as the stable tie-break
func SortRatings(ratings []*models.TickerRating) {
	sort.SliceStable(ratings, func(i, j int) bool {
		if ratings[i].Scores.Total != ratings[j].Scores.Total {
			return ratings[i].Scores.Total > ratings[j].Scores.Total
		}
		return ratings[i].Symbol < ratings[j].Symbol
	})
}

// DetectTradingWindows scans daysAhead future days for one symbol
func (s *Service) DetectTradingWindows(ctx context.Context, symbol, category string, daysAhead int) ([]models.TradingWindow, error) {
	if err := s.ValidateCategory(category); err != nil {
		return nil, err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	bars, err := s.loadBars(ctx, symbol, snap.now)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return []models.TradingWindow{}, nil
	}

	out := s.windows.Detect(windows.Input{
		Symbol:    symbol,
		Category:  category,
		Bars:      bars,
		Aligner:   snap.aligner,
		DaysAhead: daysAhead,
		Limit:     s.cfg.WindowLimit,
	})
	if out == nil {
		out = []models.TradingWindow{}
	}
	return out, nil
}

// DetectConvergenceForecastedSwings runs the convergence detector for symbols
// (or the whole category universe when symbols is empty) and ranks the results.
func (s *Service) DetectConvergenceForecastedSwings(ctx context.Context, symbols []string, category string) ([]*models.ConvergenceForecast, error) {
	if err := s.ValidateCategory(category); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		var err error
		if symbols, err = s.universe(ctx, category); err != nil {
			return nil, err
		}
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	found := make([]*models.ConvergenceForecast, len(symbols))
	errs := s.fanOut(ctx, symbols, func(ctx context.Context, i int, symbol string) error {
		bars, err := s.loadBars(ctx, symbol, snap.now)
		if err != nil {
			return err
		}
		if f, ok := s.detector.Detect(convergence.Input{
			Symbol:   symbol,
			Category: category,
			Bars:     bars,
			Horizon:  s.cfg.ConvergenceHorizon,
			Aligner:  snap.aligner,
		}); ok {
			found[i] = f
		}
		return nil
	})
	s.logBatchErrors("convergence", category, errs)

	out := []*models.ConvergenceForecast{}
	for _, f := range found {
		if f != nil {
			out = append(out, f)
		}
	}
	convergence.Rank(out)
	return out, nil
}

// DetectPostReversalMomentum finds symbols moving away from a fresh swing reversal
func (s *Service) DetectPostReversalMomentum(ctx context.Context, symbols []string, category string) ([]*models.ReversalOpportunity, error) {
	if err := s.ValidateCategory(category); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		var err error
		if symbols, err = s.universe(ctx, category); err != nil {
			return nil, err
		}
	}
	now := s.deps.Clock()

	found := make([]*models.ReversalOpportunity, len(symbols))
	errs := s.fanOut(ctx, symbols, func(ctx context.Context, i int, symbol string) error {
		bars, err := s.loadBars(ctx, symbol, now)
		if err != nil {
			return err
		}
		if o, ok := DetectReversal(symbol, category, bars, s.ind); ok {
			found[i] = o
		}
		return nil
	})
	s.logBatchErrors("reversal", category, errs)

	out := []*models.ReversalOpportunity{}
	for _, o := range found {
		if o != nil {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (s *Service) universe(ctx context.Context, category string) ([]string, error) {
	symbols, err := s.deps.Universe.GetSymbolUniverse(ctx, category)
	if err != nil {
		return nil, upstream("load universe for "+category, err)
	}
	return symbols, nil
}

// fanOut runs fn for every symbol with bounded concurrency and the upstream rate limit.
// Failures are collected per symbol; the batch always completes.
func (s *Service) fanOut(ctx context.Context, symbols []string, fn func(ctx context.Context, i int, symbol string) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(s.cfg.WorkerLimit)

	for i, symbol := range symbols {
		g.Go(func() error {
			err := s.limiter.Wait(ctx)
			if err == nil {
				err = fn(ctx, i, symbol)
			}
			if err != nil {
				s.log.Warn("symbol skipped", zap.String("symbol", symbol), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", symbol, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (s *Service) logBatchErrors(op, category string, errs error) {
	if n := len(multierr.Errors(errs)); n > 0 {
		s.log.Warn("batch completed with failures",
			zap.String("operation", op),
			zap.String("category", category),
			zap.Int("failed", n),
		)
	}
}

// upstream tags collaborator failures unless they already carry a taxonomy error
func upstream(op string, err error) error {
	if errors.Is(err, models.ErrMissingData) || errors.Is(err, models.ErrUpstream) || errors.Is(err, models.ErrConfiguration) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrUpstream, err)
}
