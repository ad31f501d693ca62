package engine

import (
	"context"
	"time"

	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
)

// BarSource returns daily bars ordered ascending by time
type BarSource interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
}

// EventSource returns astro reference events
type EventSource interface {
	GetAstroEvents(ctx context.Context, filter models.EventFilter) ([]models.AstroEvent, error)
}

// UniverseSource lists the tracked symbols of a category
type UniverseSource interface {
	GetSymbolUniverse(ctx context.Context, category string) ([]string, error)
}

// RatingCache stores ratings keyed by (symbol, ingress period)
type RatingCache interface {
	GetRating(ctx context.Context, symbol, period string) (*models.TickerRating, bool, error)
	PutRating(ctx context.Context, rating *models.TickerRating) error
}

// HistorySink records computed ratings for later analysis
type HistorySink interface {
	Record(rating *models.TickerRating)
}

// LevelSink stores Fibonacci snapshots per ingress period
type LevelSink interface {
	SaveLevels(ctx context.Context, symbol, period string, set *levels.LevelSet) error
}

// Clock returns the current time
type Clock func() time.Time
