package featured

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// Refresh reasons
const (
	ReasonNoCache       = "no_cache"
	ReasonPeriodChanged = "ingress_period_changed"
	ReasonCacheExpired  = "cache_expired"
	ReasonCacheFresh    = "cache_fresh"
)

const (
	refreshLockName = "featured:refresh"
	defaultTopN     = 10
	defaultCacheTTL = 35 * 24 * time.Hour
	defaultLockTTL  = 2 * time.Minute
)

// ErrLocked is returned when another writer holds the refresh lock
var ErrLocked = errors.New("featured refresh already in progress")

// ErrNothingRanked is returned by Refresh when no category produced a featured ticker
var ErrNothingRanked = errors.New("no ticker could be ranked")

// Rater is the engine surface the manager needs
type Rater interface {
	Categories() []string
	CurrentIngressPeriod(ctx context.Context) (models.IngressPeriod, error)
	GetBatchRatings(ctx context.Context, category string, minScore float64) (*models.BatchResult, error)
	Now() time.Time
}

// Store persists featured rankings
type Store interface {
	// LatestFeaturedWrite returns the period and time of the most recent featured write
	LatestFeaturedWrite(ctx context.Context) (period string, at time.Time, ok bool, err error)
	// ReplaceFeatured atomically replaces the featured rows of the given categories for a period
	ReplaceFeatured(ctx context.Context, period string, rows map[string][]models.FeaturedTicker) error
	GetFeatured(ctx context.Context, category, period string) ([]models.FeaturedTicker, error)
}

// Locker provides the single-writer discipline for featured writes
type Locker interface {
	Lock(ctx context.Context, name string, ttl time.Duration) (unlock func(), err error)
}

// Config holds manager settings
type Config struct {
	TopN     int
	CacheTTL time.Duration
	LockTTL  time.Duration
}

// DefaultConfig returns standard featured settings
func DefaultConfig() Config {
	return Config{TopN: defaultTopN, CacheTTL: defaultCacheTTL, LockTTL: defaultLockTTL}
}

// Decision is the staleness verdict
type Decision struct {
	ShouldRefresh bool                 `json:"should_refresh"`
	Reason        string               `json:"reason"`
	Period        models.IngressPeriod `json:"period"`
	CachedPeriod  string               `json:"cached_period,omitempty"`
	CachedAt      time.Time            `json:"cached_at,omitempty"`
}

// Manager decides staleness, recomputes and persists featured tickers
type Manager struct {
	rater  Rater
	store  Store
	locker Locker
	cfg    Config
	log    *zap.Logger
}

// NewManager creates featured manager
func NewManager(rater Rater, store Store, locker Locker, cfg Config) *Manager {
	if cfg.TopN <= 0 {
		cfg.TopN = defaultTopN
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &Manager{rater: rater, store: store, locker: locker, cfg: cfg, log: logger.Named("featured")}
}

// ShouldRefresh compares the active ingress period with the last cache write.
// Time alone never triggers a refresh except through the TTL guard.
func (m *Manager) ShouldRefresh(ctx context.Context) (Decision, error) {
	period, err := m.rater.CurrentIngressPeriod(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve ingress period: %w", err)
	}

	cachedPeriod, at, ok, err := m.store.LatestFeaturedWrite(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read featured cache state: %w", err)
	}

	d := Decision{Period: period, CachedPeriod: cachedPeriod, CachedAt: at}
	switch {
	case !ok:
		d.ShouldRefresh, d.Reason = true, ReasonNoCache
	case cachedPeriod != period.Key():
		d.ShouldRefresh, d.Reason = true, ReasonPeriodChanged
	case m.rater.Now().Sub(at) > m.cfg.CacheTTL:
		d.ShouldRefresh, d.Reason = true, ReasonCacheExpired
	default:
		d.Reason = ReasonCacheFresh
	}
	return d, nil
}

// CalculateAllFeaturedTickers rates every tracked category and keeps the top N of each,
// ranked by total descending. A failing category is skipped and reported in the error.
func (m *Manager) CalculateAllFeaturedTickers(ctx context.Context) (map[string][]*models.TickerRating, error) {
	out := make(map[string][]*models.TickerRating)
	var errs error

	for _, category := range m.rater.Categories() {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		batch, err := m.rater.GetBatchRatings(ctx, category, 0)
		if err != nil {
			m.log.Warn("category skipped", zap.String("category", category), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", category, err))
			continue
		}
		for _, e := range batch.Errors {
			m.log.Warn("symbol skipped", zap.String("category", category), zap.String("error", e))
		}

		top := Rank(batch.Ratings, m.cfg.TopN)
		out[category] = top
		m.log.Info("category ranked",
			zap.String("category", category),
			zap.Int("rated", len(batch.Ratings)),
			zap.Int("featured", len(top)),
			zap.Int("failed", len(batch.Errors)),
		)
	}
	return out, errs
}

// Rank assigns featured ranks 1..N to ratings already ordered by total descending.
// Ratings without bars (zero total with warnings) never enter the featured set.
func Rank(ratings []*models.TickerRating, topN int) []*models.TickerRating {
	out := make([]*models.TickerRating, 0, topN)
	for _, r := range ratings {
		if len(out) == topN {
			break
		}
		if r.Scores.Total == 0 && r.CurrentPrice == 0 {
			continue
		}
		ranked := *r
		ranked.FeaturedRank = len(out) + 1
		ranked.DynamicScore = DynamicScore(r)
		out = append(out, &ranked)
	}
	return out
}

// DynamicScore blends the technical total with the astro confidence of the period
func DynamicScore(r *models.TickerRating) float64 {
	return 0.8*r.Scores.Total + 0.2*r.IngressAlignment.Confidence
}

// StoreFeaturedTickers replaces the cached rank sets for the categories present in ratings.
// The write holds the refresh lock and runs as one transaction in the store.
func (m *Manager) StoreFeaturedTickers(ctx context.Context, ratings []*models.TickerRating) error {
	period, err := m.rater.CurrentIngressPeriod(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve ingress period: %w", err)
	}

	unlock, err := m.locker.Lock(ctx, refreshLockName, m.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}
	defer unlock()

	now := m.rater.Now()
	rows := make(map[string][]models.FeaturedTicker)
	for _, r := range ratings {
		stored := *r
		stored.IngressPeriod = period.Key()
		rows[r.Category] = append(rows[r.Category], models.FeaturedTicker{
			Symbol:        r.Symbol,
			Category:      r.Category,
			IngressPeriod: period.Key(),
			Rank:          r.FeaturedRank,
			TotalScore:    r.Scores.Total,
			CalculatedAt:  now,
			Rating:        &stored,
		})
	}

	if err := m.store.ReplaceFeatured(ctx, period.Key(), rows); err != nil {
		return fmt.Errorf("failed to store featured tickers: %w", err)
	}

	m.log.Info("featured tickers stored",
		zap.String("period", period.Key()),
		zap.Int("categories", len(rows)),
		zap.Int("tickers", len(ratings)),
	)
	return nil
}

// Refresh runs the full check-compute-store cycle. It returns the decision taken.
func (m *Manager) Refresh(ctx context.Context, force bool) (Decision, error) {
	d, err := m.ShouldRefresh(ctx)
	if err != nil {
		return d, err
	}
	if !d.ShouldRefresh && !force {
		m.log.Debug("featured cache fresh", zap.String("period", d.Period.Key()))
		return d, nil
	}

	byCategory, calcErr := m.CalculateAllFeaturedTickers(ctx)
	if calcErr != nil {
		m.log.Warn("featured calculation incomplete", zap.Error(calcErr))
	}
	var flat []*models.TickerRating
	for _, category := range m.rater.Categories() {
		flat = append(flat, byCategory[category]...)
	}
	if len(flat) == 0 {
		return d, multierr.Append(ErrNothingRanked, calcErr)
	}
	if err := m.StoreFeaturedTickers(ctx, flat); err != nil {
		return d, err
	}
	return d, nil
}

// Featured returns the stored featured rows of a category for the current period
func (m *Manager) Featured(ctx context.Context, category string) ([]models.FeaturedTicker, error) {
	period, err := m.rater.CurrentIngressPeriod(ctx)
	if err != nil {
		return nil, err
	}
	return m.store.GetFeatured(ctx, category, period.Key())
}
