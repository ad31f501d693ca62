package convergence

import (
	"testing"
	"time"

	"github.com/selivandex/forecastr/internal/adapters/memory"
	"github.com/selivandex/forecastr/internal/astro"
	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
)

func newDetector() *Detector {
	ind := indicators.NewCalculator()
	return NewDetector(levels.NewCalculator(ind), ind, DefaultConfig())
}

func TestFinalConfidence(t *testing.T) {
	tests := []struct {
		base, boost, want float64
	}{
		{0.5, 0.1, 0.6},
		{0.95, 0.15, 1},
		{0, -0.2, 0},
		{0.7, 0, 0.7},
	}
	for _, tt := range tests {
		if got := FinalConfidence(tt.base, tt.boost); got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Errorf("FinalConfidence(%v, %v) = %v, want %v", tt.base, tt.boost, got, tt.want)
		}
	}
}

func TestClampHorizon(t *testing.T) {
	if got := ClampHorizon(1, 7, 180); got != 7 {
		t.Errorf("below min = %d", got)
	}
	if got := ClampHorizon(365, 7, 180); got != 180 {
		t.Errorf("above max = %d", got)
	}
	if got := ClampHorizon(30, 7, 180); got != 30 {
		t.Errorf("inside = %d", got)
	}
}

func TestDetector_Detect(t *testing.T) {
	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	d := newDetector()

	t.Run("needs bars and aligner", func(t *testing.T) {
		if _, ok := d.Detect(Input{Symbol: "X", Horizon: 30, Aligner: astro.NewAligner(nil, nil)}); ok {
			t.Error("no bars should not converge")
		}
		bars := memory.GenerateBars("X", start, 100, 400, 0.3)
		if _, ok := d.Detect(Input{Symbol: "X", Bars: bars, Horizon: 30}); ok {
			t.Error("missing aligner should not converge")
		}
	})

	t.Run("trending series converges on a static level", func(t *testing.T) {
		bars := memory.GenerateBars("SPY", start, 200, 400, 0.3)
		f, ok := d.Detect(Input{
			Symbol:   "SPY",
			Category: "equities",
			Bars:     bars,
			Horizon:  30,
			Aligner:  astro.NewAligner(nil, nil),
		})
		if !ok {
			t.Fatal("expected a convergence")
		}

		fs := f.ForecastedSwing
		if len(fs.ConvergingMethods) < 2 || fs.ConvergingMethods[0] != MethodTrend {
			t.Errorf("methods = %v, want trend plus a static level", fs.ConvergingMethods)
		}
		if fs.FinalConfidence < 0 || fs.FinalConfidence > 1 {
			t.Errorf("final confidence %v outside [0,1]", fs.FinalConfidence)
		}
		if got := FinalConfidence(fs.BaseConfidence, fs.AstroBoost); got != fs.FinalConfidence {
			t.Errorf("final %v != clamp(base+boost) %v", fs.FinalConfidence, got)
		}

		last := bars[len(bars)-1].Time
		days := models.DaysBetween(last, fs.Date)
		if days < 1 || days > 30 {
			t.Errorf("forecast %d days ahead, want within horizon", days)
		}
		if f.LastSwing.Date.IsZero() {
			t.Error("last swing not set")
		}
	})

	t.Run("deterministic for the same snapshot", func(t *testing.T) {
		bars := memory.GenerateBars("QQQ", start, 200, 300, 0.2)
		in := Input{Symbol: "QQQ", Bars: bars, Horizon: 45, Aligner: astro.NewAligner(nil, nil)}
		a, okA := d.Detect(in)
		b, okB := d.Detect(in)
		if okA != okB {
			t.Fatal("non-deterministic detection")
		}
		if okA && (a.ForecastedSwing.Date != b.ForecastedSwing.Date || a.ForecastedSwing.Price != b.ForecastedSwing.Price) {
			t.Error("non-deterministic forecast")
		}
	})
}

func TestRank(t *testing.T) {
	mk := func(symbol string, conf float64, methods int) *models.ConvergenceForecast {
		return &models.ConvergenceForecast{
			Symbol: symbol,
			ForecastedSwing: models.ForecastedSwing{
				FinalConfidence:   conf,
				ConvergingMethods: make([]string, methods),
			},
		}
	}
	forecasts := []*models.ConvergenceForecast{
		mk("CCC", 0.6, 2),
		mk("BBB", 0.8, 2),
		mk("AAA", 0.6, 2),
		mk("DDD", 0.6, 4),
	}
	Rank(forecasts)

	want := []string{"BBB", "DDD", "AAA", "CCC"}
	for i, f := range forecasts {
		if f.Symbol != want[i] {
			t.Errorf("position %d = %s, want %s", i, f.Symbol, want[i])
		}
		if f.Rank != i+1 {
			t.Errorf("%s rank = %d, want %d", f.Symbol, f.Rank, i+1)
		}
	}
}
