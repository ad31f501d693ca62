package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// Repository is the PostgreSQL store for astro events, universe, rating cache,
// featured rankings and Fibonacci level snapshots.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new store repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type eventRow struct {
	Date      time.Time      `db:"date"`
	EventType string         `db:"event_type"`
	Body      string         `db:"body"`
	Sign      sql.NullString `db:"sign"`
	Metadata  []byte         `db:"metadata"`
}

// GetAstroEvents returns events ordered by date. Legacy solar_ingress rows are
// selected alongside ingress and normalised to the canonical form.
func (r *Repository) GetAstroEvents(ctx context.Context, filter models.EventFilter) ([]models.AstroEvent, error) {
	types := make([]string, 0, len(filter.Types)+1)
	for _, t := range filter.Types {
		types = append(types, string(t))
		if t == models.EventIngress {
			types = append(types, string(models.EventSolarIngressLegacy))
		}
	}

	query := `
		SELECT date, event_type, body, sign, metadata
		FROM astro_events
		WHERE (cardinality($1::text[]) = 0 OR event_type = ANY($1))
		  AND ($2::date IS NULL OR date >= $2)
		  AND ($3::date IS NULL OR date <= $3)
		ORDER BY date, id
	`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(types), nullTime(filter.From), nullTime(filter.To)); err != nil {
		return nil, fmt.Errorf("failed to query astro events: %w", err)
	}

	events := make([]models.AstroEvent, 0, len(rows))
	for _, row := range rows {
		e := models.AstroEvent{
			Date:      models.Day(row.Date),
			EventType: models.AstroEventType(row.EventType),
			Body:      row.Body,
			Sign:      row.Sign.String,
			Metadata:  decodeMetadata(row.Metadata),
		}
		events = append(events, models.NormalizeEvent(e))
	}
	return events, nil
}

// decodeMetadata flattens the JSON object into strings; malformed metadata is dropped
func decodeMetadata(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		logger.Debug("invalid astro event metadata", zap.Error(err))
		return nil
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// GetSymbolUniverse returns active symbols of a category
func (r *Repository) GetSymbolUniverse(ctx context.Context, category string) ([]string, error) {
	var symbols []string
	err := r.db.SelectContext(ctx, &symbols, `
		SELECT symbol FROM ticker_universe
		WHERE category = $1 AND active
		ORDER BY symbol
	`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query universe: %w", err)
	}
	return symbols, nil
}

// AddToUniverse registers symbols for a category
func (r *Repository) AddToUniverse(ctx context.Context, category string, symbols ...string) error {
	for _, s := range symbols {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO ticker_universe (symbol, category, active)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (symbol, category) DO UPDATE SET active = TRUE
		`, s, category)
		if err != nil {
			return fmt.Errorf("failed to add %s to universe: %w", s, err)
		}
	}
	return nil
}

// GetRating reads a cached rating for (symbol, ingress period)
func (r *Repository) GetRating(ctx context.Context, symbol, period string) (*models.TickerRating, bool, error) {
	var raw []byte
	err := r.db.GetContext(ctx, &raw, `
		SELECT rating_data FROM ticker_ratings_cache
		WHERE symbol = $1 AND ingress_period = $2
	`, symbol, period)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rating cache: %w", err)
	}

	var rating models.TickerRating
	if err := json.Unmarshal(raw, &rating); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached rating: %w", err)
	}
	return &rating, true, nil
}

// PutRating upserts the cached rating keyed by (symbol, ingress period)
func (r *Repository) PutRating(ctx context.Context, rating *models.TickerRating) error {
	return upsertRating(ctx, r.db, rating)
}

func upsertRating(ctx context.Context, ex sqlx.ExecerContext, rating *models.TickerRating) error {
	data, err := json.Marshal(rating)
	if err != nil {
		return fmt.Errorf("failed to encode rating: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO ticker_ratings_cache (id, symbol, category, ingress_period, total_score, calculated_at, rating_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, ingress_period)
		DO UPDATE SET
			category = EXCLUDED.category,
			total_score = EXCLUDED.total_score,
			calculated_at = EXCLUDED.calculated_at,
			rating_data = EXCLUDED.rating_data
	`, uuid.New(), rating.Symbol, rating.Category, rating.IngressPeriod, rating.Scores.Total, rating.CalculatedAt, data)
	if err != nil {
		return fmt.Errorf("failed to upsert rating cache: %w", err)
	}
	return nil
}

// LatestFeaturedWrite returns the period and time of the newest featured row
func (r *Repository) LatestFeaturedWrite(ctx context.Context) (string, time.Time, bool, error) {
	var row struct {
		Period string    `db:"ingress_period"`
		At     time.Time `db:"calculated_at"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT ingress_period, calculated_at FROM featured_tickers
		ORDER BY calculated_at DESC
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("failed to read featured state: %w", err)
	}
	return row.Period, row.At, true, nil
}

// ReplaceFeatured deletes and re-inserts the rank sets of the given categories for a period
// and refreshes the rating cache, all in one transaction.
func (r *Repository) ReplaceFeatured(ctx context.Context, period string, rows map[string][]models.FeaturedTicker) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for category, tickers := range rows {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM featured_tickers WHERE category = $1 AND ingress_period = $2
		`, category, period); err != nil {
			return fmt.Errorf("failed to clear featured %s: %w", category, err)
		}

		for _, t := range tickers {
			data, err := json.Marshal(t.Rating)
			if err != nil {
				return fmt.Errorf("failed to encode featured rating: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO featured_tickers (id, symbol, category, ingress_period, rank, total_score, calculated_at, rating_data)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, uuid.New(), t.Symbol, t.Category, period, t.Rank, t.TotalScore, t.CalculatedAt, data); err != nil {
				return fmt.Errorf("failed to insert featured %s: %w", t.Symbol, err)
			}
			if t.Rating != nil {
				if err := upsertRating(ctx, tx, t.Rating); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit featured replace: %w", err)
	}
	return nil
}

// GetFeatured returns featured rows of a category for a period ordered by rank
func (r *Repository) GetFeatured(ctx context.Context, category, period string) ([]models.FeaturedTicker, error) {
	var rows []struct {
		models.FeaturedTicker
		Data []byte `db:"rating_data"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT symbol, category, ingress_period, rank, total_score, calculated_at, rating_data
		FROM featured_tickers
		WHERE category = $1 AND ingress_period = $2
		ORDER BY rank
	`, category, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query featured: %w", err)
	}

	out := make([]models.FeaturedTicker, 0, len(rows))
	for _, row := range rows {
		t := row.FeaturedTicker
		var rating models.TickerRating
		if err := json.Unmarshal(row.Data, &rating); err == nil {
			t.Rating = &rating
		}
		out = append(out, t)
	}
	return out, nil
}

// SaveLevels stores the Fibonacci snapshot of a symbol for a period
func (r *Repository) SaveLevels(ctx context.Context, symbol, period string, set *levels.LevelSet) error {
	if set == nil || len(set.Fibonacci) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, f := range set.Fibonacci {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO fibonacci_levels (symbol, ingress_period, level_key, ratio, price, swing_high, swing_low, calculated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, ingress_period, level_key)
			DO UPDATE SET
				price = EXCLUDED.price,
				swing_high = EXCLUDED.swing_high,
				swing_low = EXCLUDED.swing_low,
				calculated_at = EXCLUDED.calculated_at
		`, symbol, period, f.Key, f.Ratio, f.Price, set.SwingHigh, set.SwingLow, now)
		if err != nil {
			return fmt.Errorf("failed to save level %s: %w", f.Key, err)
		}
	}
	return nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
