package store

import (
	"context"
	"testing"
	"time"

	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
	"github.com/selivandex/forecastr/test/testdb"
)

const period = "2025-01-20_Aquarius"

func TestRepository_GetAstroEvents(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.Conn())
	ctx := context.Background()

	db.Exec(t, `INSERT INTO astro_events (date, event_type, body, sign, metadata) VALUES
		('2025-01-20', 'solar_ingress', 'Sun', 'Aquarius', '{}'),
		('2025-01-29', 'lunar_phase', 'Moon', NULL, '{"phase": "new_moon", "illumination": 0}'),
		('2025-02-18', 'ingress', 'Sun', 'Pisces', '{}')`)

	events, err := repo.GetAstroEvents(ctx, models.EventFilter{Types: []models.AstroEventType{models.EventIngress}})
	if err != nil {
		t.Fatalf("GetAstroEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 ingress rows", len(events))
	}
	if events[0].EventType != models.EventIngress || events[0].Sign != "Aquarius" {
		t.Errorf("legacy row not normalised: %+v", events[0])
	}

	all, err := repo.GetAstroEvents(ctx, models.EventFilter{
		From: time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("GetAstroEvents: %v", err)
	}
	if len(all) != 1 || all[0].Metadata["phase"] != "new_moon" || all[0].Metadata["illumination"] != "0" {
		t.Errorf("lunar events = %+v", all)
	}
}

func TestRepository_Universe(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.Conn())
	ctx := context.Background()

	if err := repo.AddToUniverse(ctx, "equities", "SPY", "QQQ", "SPY"); err != nil {
		t.Fatalf("AddToUniverse: %v", err)
	}
	symbols, err := repo.GetSymbolUniverse(ctx, "equities")
	if err != nil {
		t.Fatalf("GetSymbolUniverse: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "QQQ" {
		t.Errorf("symbols = %v", symbols)
	}
}

func TestRepository_RatingCache(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.Conn())
	ctx := context.Background()

	if _, ok, err := repo.GetRating(ctx, "SPY", period); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	r := &models.TickerRating{Symbol: "SPY", Category: "equities", IngressPeriod: period, Scores: models.Scores{Total: 71}, CalculatedAt: time.Now().UTC()}
	if err := repo.PutRating(ctx, r); err != nil {
		t.Fatalf("PutRating: %v", err)
	}
	r.Scores.Total = 75
	if err := repo.PutRating(ctx, r); err != nil {
		t.Fatalf("PutRating upsert: %v", err)
	}

	got, ok, err := repo.GetRating(ctx, "SPY", period)
	if err != nil || !ok {
		t.Fatalf("GetRating: ok=%v err=%v", ok, err)
	}
	if got.Scores.Total != 75 {
		t.Errorf("total = %v, want 75", got.Scores.Total)
	}
}

func TestRepository_Featured(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.Conn())
	ctx := context.Background()

	if _, _, ok, err := repo.LatestFeaturedWrite(ctx); err != nil || ok {
		t.Fatalf("empty featured: ok=%v err=%v", ok, err)
	}

	at := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	row := func(symbol string, rank int) models.FeaturedTicker {
		return models.FeaturedTicker{
			Symbol: symbol, Category: "equities", IngressPeriod: period, Rank: rank, TotalScore: float64(90 - rank), CalculatedAt: at,
			Rating: &models.TickerRating{Symbol: symbol, Category: "equities", IngressPeriod: period, CalculatedAt: at},
		}
	}

	if err := repo.ReplaceFeatured(ctx, period, map[string][]models.FeaturedTicker{"equities": {row("SPY", 1), row("QQQ", 2)}}); err != nil {
		t.Fatalf("ReplaceFeatured: %v", err)
	}
	if err := repo.ReplaceFeatured(ctx, period, map[string][]models.FeaturedTicker{"equities": {row("IWM", 1)}}); err != nil {
		t.Fatalf("ReplaceFeatured again: %v", err)
	}

	rows, err := repo.GetFeatured(ctx, "equities", period)
	if err != nil {
		t.Fatalf("GetFeatured: %v", err)
	}
	if len(rows) != 1 || rows[0].Symbol != "IWM" || rows[0].Rating == nil {
		t.Errorf("rows = %+v", rows)
	}

	p, written, ok, err := repo.LatestFeaturedWrite(ctx)
	if err != nil || !ok || p != period || !written.Equal(at) {
		t.Errorf("latest write = %s %v %v %v", p, written, ok, err)
	}

	if _, ok, _ := repo.GetRating(ctx, "IWM", period); !ok {
		t.Error("featured write should refresh rating cache")
	}

	dup := map[string][]models.FeaturedTicker{"equities": {row("A", 1), row("B", 1)}}
	if err := repo.ReplaceFeatured(ctx, period, dup); err == nil {
		t.Error("duplicate rank should fail")
	}
	if rows, _ := repo.GetFeatured(ctx, "equities", period); len(rows) != 1 || rows[0].Symbol != "IWM" {
		t.Errorf("failed replace must roll back, rows = %+v", rows)
	}
}

func TestRepository_SaveLevels(t *testing.T) {
	db := testdb.Setup(t)
	repo := NewRepository(db.Conn())
	ctx := context.Background()

	set := &levels.LevelSet{
		SwingHigh: 120,
		SwingLow:  100,
		Fibonacci: []levels.FibLevel{{Key: "level_500", Ratio: 0.5, Price: 110}},
	}
	if err := repo.SaveLevels(ctx, "SPY", period, set); err != nil {
		t.Fatalf("SaveLevels: %v", err)
	}
	set.Fibonacci[0].Price = 111
	if err := repo.SaveLevels(ctx, "SPY", period, set); err != nil {
		t.Fatalf("SaveLevels upsert: %v", err)
	}

	var price float64
	if err := db.Conn().Get(&price, `SELECT price FROM fibonacci_levels WHERE symbol = 'SPY' AND level_key = 'level_500'`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if price != 111 {
		t.Errorf("price = %v, want 111", price)
	}
}
