package market

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// dailyTimeframe is the only granularity the engine reads
const dailyTimeframe = "1d"

// Repository reads daily bars from ClickHouse market_ohlcv, falling back to
// the PostgreSQL financial_data table when ClickHouse is absent or has no rows.
type Repository struct {
	ch *sqlx.DB
	pg *sqlx.DB
}

// NewRepository creates new market repository. Either connection may be nil.
func NewRepository(ch, pg *sqlx.DB) *Repository {
	return &Repository{ch: ch, pg: pg}
}

type barRow struct {
	Time   time.Time `db:"time"`
	Open   float64   `db:"open"`
	High   float64   `db:"high"`
	Low    float64   `db:"low"`
	Close  float64   `db:"close"`
	Volume float64   `db:"volume"`
}

// GetBars returns bars in [start, end] ordered ascending
func (r *Repository) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if r.ch != nil {
		bars, err := r.clickhouseBars(ctx, symbol, start, end)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if err != nil {
			logger.Warn("ClickHouse bar query failed, using PostgreSQL fallback",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
		}
	}
	if r.pg == nil {
		return nil, fmt.Errorf("no bar source configured: %w", models.ErrUpstream)
	}
	return r.postgresBars(ctx, symbol, start, end)
}

func (r *Repository) clickhouseBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	var rows []barRow
	err := r.ch.SelectContext(ctx, &rows, `
		SELECT timestamp AS time, open, high, low, close, volume
		FROM market_ohlcv FINAL
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp
	`, symbol, dailyTimeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars from ClickHouse: %w", err)
	}
	return toBars(symbol, rows), nil
}

func (r *Repository) postgresBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	var rows []barRow
	err := r.pg.SelectContext(ctx, &rows, `
		SELECT date::timestamptz AS time, open, high, low, close, volume
		FROM financial_data
		WHERE symbol = $1 AND date >= $2::date AND date <= $3::date
		ORDER BY date
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query financial_data: %w", err)
	}
	return toBars(symbol, rows), nil
}

// toBars converts rows and drops duplicate days, keeping the first
func toBars(symbol string, rows []barRow) []models.Bar {
	bars := make([]models.Bar, 0, len(rows))
	var last time.Time
	for _, row := range rows {
		day := models.Day(row.Time)
		if len(bars) > 0 && !day.After(last) {
			continue
		}
		last = day
		bars = append(bars, models.NewBar(symbol, day, row.Open, row.High, row.Low, row.Close, row.Volume))
	}
	return bars
}
