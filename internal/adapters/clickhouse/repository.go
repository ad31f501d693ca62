package clickhouse

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// Repository writes rating snapshots to ClickHouse
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new ClickHouse repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SaveRatings inserts rating snapshots into rating_history
func (r *Repository) SaveRatings(ctx context.Context, ratings []*models.TickerRating) error {
	if len(ratings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO rating_history
		(calculated_at, symbol, category, ingress_period, total, confluence, proximity, momentum, seasonal, volatility, recommendation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rt := range ratings {
		s := rt.Scores
		if _, err := stmt.ExecContext(ctx,
			rt.CalculatedAt, rt.Symbol, rt.Category, rt.IngressPeriod,
			s.Total, s.Confluence, s.Proximity, s.Momentum, s.Seasonal, s.Volatility,
			string(rt.Recommendation),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert rating snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved rating snapshots to ClickHouse", zap.Int("count", len(ratings)))
	return nil
}
