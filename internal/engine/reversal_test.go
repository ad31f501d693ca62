package engine

import (
	"testing"
	"time"

	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/pkg/models"
)

func reversalBars() []models.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []models.Bar
	// Steady decline into a low, then a strong bounce on rising volume
	for i := 0; i <= 32; i++ {
		c := 130 - float64(i)*30/32
		bars = append(bars, models.NewBar("REV", start.AddDate(0, 0, i), c, c+0.5, c-0.5, c, 1000))
	}
	for i := 1; i <= 7; i++ {
		c := 100 + float64(i)*2
		bars = append(bars, models.NewBar("REV", start.AddDate(0, 0, 32+i), c, c+0.5, c-0.5, c, 3000))
	}
	return bars
}

func TestDetectReversal(t *testing.T) {
	ind := indicators.NewCalculator()

	t.Run("bullish bounce", func(t *testing.T) {
		o, ok := DetectReversal("REV", "equities", reversalBars(), ind)
		if !ok {
			t.Fatal("expected reversal opportunity")
		}
		if o.Direction != "bullish" {
			t.Errorf("direction = %s", o.Direction)
		}
		if o.ReversalPrice != 99.5 {
			t.Errorf("reversal price = %v, want 99.5", o.ReversalPrice)
		}
		if o.DaysSinceReversal != 7 {
			t.Errorf("days since reversal = %d, want 7", o.DaysSinceReversal)
		}
		if o.MovePercent < 3 {
			t.Errorf("move = %v", o.MovePercent)
		}
		if o.Confidence <= 0 || o.Confidence > 1 {
			t.Errorf("confidence %v outside (0,1]", o.Confidence)
		}
	})

	t.Run("too few bars", func(t *testing.T) {
		if _, ok := DetectReversal("REV", "equities", reversalBars()[:20], ind); ok {
			t.Error("short history should not qualify")
		}
	})

	t.Run("weak volume", func(t *testing.T) {
		bars := reversalBars()
		for i := range bars {
			bars[i].Volume = models.NewDecimal(1000)
		}
		for i := len(bars) - 7; i < len(bars); i++ {
			bars[i].Volume = models.NewDecimal(500)
		}
		if _, ok := DetectReversal("REV", "equities", bars, ind); ok {
			t.Error("falling volume should not qualify")
		}
	})
}
