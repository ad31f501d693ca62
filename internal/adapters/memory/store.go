package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
)

// Store is an in-memory implementation of every collaborator the engine and
// featured manager need. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	bars     map[string][]models.Bar
	events   []models.AstroEvent
	universe map[string][]string
	ratings  map[string]*models.TickerRating
	featured map[string][]models.FeaturedTicker // key: category|period
	lastPer  string
	lastAt   time.Time
	levels   map[string][]levels.FibLevel

	// FailSymbols makes GetBars fail for the listed symbols
	FailSymbols map[string]error
	// Now stamps featured writes; defaults to time.Now
	Now func() time.Time
}

// NewStore creates empty memory store
func NewStore() *Store {
	return &Store{
		bars:        make(map[string][]models.Bar),
		universe:    make(map[string][]string),
		ratings:     make(map[string]*models.TickerRating),
		featured:    make(map[string][]models.FeaturedTicker),
		levels:      make(map[string][]levels.FibLevel),
		FailSymbols: make(map[string]error),
		Now:         time.Now,
	}
}

// SetBars replaces the bars of a symbol
func (s *Store) SetBars(symbol string, bars []models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = bars
}

// AddEvents appends astro events
func (s *Store) AddEvents(events ...models.AstroEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// SetUniverse replaces the symbols of a category
func (s *Store) SetUniverse(category string, symbols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.universe[category] = symbols
}

// GetBars returns bars within [start, end]
func (s *Store) GetBars(_ context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err, ok := s.FailSymbols[symbol]; ok {
		return nil, err
	}
	var out []models.Bar
	for _, b := range s.bars[symbol] {
		if b.Time.Before(models.Day(start)) || b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// GetAstroEvents filters events by type and date range
func (s *Store) GetAstroEvents(_ context.Context, filter models.EventFilter) ([]models.AstroEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make(map[models.AstroEventType]bool)
	for _, t := range filter.Types {
		types[t] = true
		if t == models.EventIngress {
			types[models.EventSolarIngressLegacy] = true
		}
	}

	var out []models.AstroEvent
	for _, e := range s.events {
		if len(types) > 0 && !types[e.EventType] {
			continue
		}
		if !filter.From.IsZero() && e.Date.Before(models.Day(filter.From)) {
			continue
		}
		if !filter.To.IsZero() && e.Date.After(filter.To) {
			continue
		}
		out = append(out, models.NormalizeEvent(e))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GetSymbolUniverse returns the symbols of a category
func (s *Store) GetSymbolUniverse(_ context.Context, category string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.universe[category]...), nil
}

// GetRating returns a cached rating
func (s *Store) GetRating(_ context.Context, symbol, period string) (*models.TickerRating, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[symbol+"|"+period]
	return r, ok, nil
}

// PutRating upserts a cached rating
func (s *Store) PutRating(_ context.Context, rating *models.TickerRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[rating.Symbol+"|"+rating.IngressPeriod] = rating
	return nil
}

// LatestFeaturedWrite returns the last featured write
func (s *Store) LatestFeaturedWrite(_ context.Context) (string, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastPer == "" {
		return "", time.Time{}, false, nil
	}
	return s.lastPer, s.lastAt, true, nil
}

// ReplaceFeatured swaps the rank sets of the given categories under one lock
func (s *Store) ReplaceFeatured(_ context.Context, period string, rows map[string][]models.FeaturedTicker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.Now()
	for category, tickers := range rows {
		seen := make(map[int]bool, len(tickers))
		for _, t := range tickers {
			if seen[t.Rank] {
				return fmt.Errorf("duplicate rank %d in %s", t.Rank, category)
			}
			seen[t.Rank] = true
		}
		sorted := append([]models.FeaturedTicker(nil), tickers...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
		s.featured[category+"|"+period] = sorted
		for _, t := range sorted {
			if t.Rating != nil {
				s.ratings[t.Symbol+"|"+period] = t.Rating
			}
			if t.CalculatedAt.After(at) {
				at = t.CalculatedAt
			}
		}
	}
	s.lastPer, s.lastAt = period, at
	return nil
}

// GetFeatured returns the featured rows of a category for a period
func (s *Store) GetFeatured(_ context.Context, category, period string) ([]models.FeaturedTicker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FeaturedTicker(nil), s.featured[category+"|"+period]...), nil
}

// SaveLevels stores the Fibonacci snapshot of a symbol
func (s *Store) SaveLevels(_ context.Context, symbol, period string, set *levels.LevelSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[symbol+"|"+period] = set.Fibonacci
	return nil
}

// Levels returns a stored Fibonacci snapshot
func (s *Store) Levels(symbol, period string) []levels.FibLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levels[symbol+"|"+period]
}

// GenerateBars builds a deterministic daily series oscillating around base with
// an optional drift (percent per day). Used for tests and demo runs.
func GenerateBars(symbol string, start time.Time, days int, base, drift float64) []models.Bar {
	bars := make([]models.Bar, 0, days)
	for i := 0; i < days; i++ {
		t := models.Day(start).AddDate(0, 0, i)
		trend := base * (1 + drift/100*float64(i))
		wave := base * 0.05 * math.Sin(float64(i)*2*math.Pi/29.5)
		mid := trend + wave
		spread := base * (0.01 + 0.004*math.Abs(math.Cos(float64(i)/7)))
		open := mid - spread/4
		closeP := mid + spread/4*math.Sin(float64(i))
		high := math.Max(open, closeP) + spread/2
		low := math.Min(open, closeP) - spread/2
		volume := 1_000_000 * (1 + 0.3*math.Sin(float64(i)/5))
		bars = append(bars, models.NewBar(symbol, t, open, high, low, closeP, volume))
	}
	return bars
}
