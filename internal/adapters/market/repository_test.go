package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/selivandex/forecastr/pkg/models"
	"github.com/selivandex/forecastr/test/testdb"
)

func TestToBars_DropsDuplicateDays(t *testing.T) {
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := []barRow{
		{Time: day, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Time: day.Add(3 * time.Hour), Open: 9, High: 9, Low: 9, Close: 9, Volume: 9},
		{Time: day.AddDate(0, 0, 1), Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 20},
	}
	bars := toBars("SPY", rows)
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if bars[0].Close.InexactFloat64() != 1.5 {
		t.Errorf("first row should win, close = %s", bars[0].Close)
	}
}

func TestRepository_NoSource(t *testing.T) {
	_, err := NewRepository(nil, nil).GetBars(context.Background(), "SPY", time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, models.ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}

func TestRepository_PostgresBars(t *testing.T) {
	db := testdb.Setup(t)
	db.SeedBars(t, "SPY",
		[4]float64{100, 102, 99, 101},
		[4]float64{101, 104, 100, 103},
		[4]float64{103, 105, 102, 104},
	)

	repo := NewRepository(nil, db.Conn())
	bars, err := repo.GetBars(context.Background(), "SPY",
		time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if !bars[0].Time.Before(bars[1].Time) {
		t.Error("bars not ascending")
	}
	if bars[1].Close.InexactFloat64() != 104 {
		t.Errorf("close = %s", bars[1].Close)
	}
}
