package scoring

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/selivandex/forecastr/internal/adapters/memory"
	"github.com/selivandex/forecastr/internal/astro"
	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
)

func newAggregator() *Aggregator {
	ind := indicators.NewCalculator()
	return NewAggregator(levels.NewCalculator(ind), ind, DefaultWeights())
}

func TestAggregator_Rate(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	agg := newAggregator()

	t.Run("no bars yields neutral rating", func(t *testing.T) {
		r := agg.Rate(Input{Symbol: "NONE", Category: "equities"})
		if r.Scores.Total != 0 || r.Recommendation != models.Neutral {
			t.Errorf("rating = %v %s, want 0 neutral", r.Scores.Total, r.Recommendation)
		}
		if len(r.Warnings) == 0 {
			t.Error("expected a warning")
		}
	})

	t.Run("one bar yields neutral rating", func(t *testing.T) {
		r := agg.Rate(Input{Symbol: "ONE", Category: "equities", Bars: memory.GenerateBars("ONE", start, 1, 100, 0)})
		if r.Recommendation != models.Neutral || len(r.Warnings) == 0 {
			t.Errorf("rating = %s warnings %v", r.Recommendation, r.Warnings)
		}
	})

	for _, tc := range []struct {
		name  string
		drift float64
	}{
		{"uptrend", 0.3},
		{"downtrend", -0.3},
		{"sideways", 0},
	} {
		t.Run(tc.name+" total is the weighted sum", func(t *testing.T) {
			bars := memory.GenerateBars("SPY", start, 250, 400, tc.drift)
			r := agg.Rate(Input{
				Symbol:   "SPY",
				Category: "equities",
				Bars:     bars,
				Aligner:  astro.NewAligner(nil, nil),
			})

			if r.Scores.Total < 0 || r.Scores.Total > 100 {
				t.Fatalf("total %v outside [0,100]", r.Scores.Total)
			}
			want := DefaultWeights().Weights.Total(r.Scores)
			if math.Abs(r.Scores.Total-want) > 1e-9 {
				t.Errorf("total = %v, weighted sum = %v", r.Scores.Total, want)
			}
			for name, v := range map[string]float64{
				"confluence": r.Scores.Confluence,
				"proximity":  r.Scores.Proximity,
				"momentum":   r.Scores.Momentum,
				"seasonal":   r.Scores.Seasonal,
				"aspect":     r.Scores.AspectAlignment,
				"volatility": r.Scores.Volatility,
				"trend":      r.Scores.Trend,
				"volume":     r.Scores.Volume,
			} {
				if v < 0 || v > 100 {
					t.Errorf("%s score %v outside [0,100]", name, v)
				}
			}
			if r.IngressPeriod == "" {
				t.Error("ingress period not set")
			}
			if r.Recommendation != Recommend(r.Scores.Total, r.Direction) {
				t.Errorf("recommendation %s inconsistent with total %v", r.Recommendation, r.Scores.Total)
			}
		})
	}

	t.Run("convergence lifts confluence", func(t *testing.T) {
		bars := memory.GenerateBars("BTC-USD", start, 120, 50000, 0.1)
		conv := &models.ConvergenceForecast{
			Symbol: "BTC-USD",
			ForecastedSwing: models.ForecastedSwing{
				Type:              models.SwingHigh,
				ConvergingMethods: []string{"fibonacci", "pivot", "lunar"},
				FinalConfidence:   0.9,
			},
		}
		r := agg.Rate(Input{Symbol: "BTC-USD", Category: "crypto", Bars: bars, Convergence: conv})
		if r.Scores.Confluence < 90 {
			t.Errorf("confluence = %v, want >= 90", r.Scores.Confluence)
		}
		found := false
		for _, reason := range r.Reasons {
			if strings.Contains(reason, "convergence of 3 methods") {
				found = true
			}
		}
		if !found {
			t.Errorf("missing convergence reason in %v", r.Reasons)
		}
	})

	t.Run("flat series warns about degenerate range", func(t *testing.T) {
		var bars []models.Bar
		for i := 0; i < 40; i++ {
			bars = append(bars, models.NewBar("FLAT", start.AddDate(0, 0, i), 10, 10, 10, 10, 100))
		}
		r := agg.Rate(Input{Symbol: "FLAT", Category: "equities", Bars: bars})
		found := false
		for _, w := range r.Warnings {
			if strings.Contains(w, "zero price range") {
				found = true
			}
		}
		if !found {
			t.Errorf("warnings = %v, want zero price range", r.Warnings)
		}
		if r.Validations.Fib == nil || *r.Validations.Fib {
			t.Error("fib validation must fail on a degenerate range")
		}
	})
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		total float64
		dir   int
		want  models.Recommendation
	}{
		{90, 1, models.StrongBuy},
		{90, -1, models.StrongSell},
		{75, 1, models.Buy},
		{75, -1, models.Sell},
		{90, 0, models.Hold},
		{55, 1, models.Hold},
		{20, -1, models.Neutral},
	}
	for _, tt := range tests {
		if got := Recommend(tt.total, tt.dir); got != tt.want {
			t.Errorf("Recommend(%v, %d) = %s, want %s", tt.total, tt.dir, got, tt.want)
		}
	}
}

func TestComponentScores(t *testing.T) {
	if got := ProximityScore(0); got != 100 {
		t.Errorf("ProximityScore(0) = %v", got)
	}
	if got := ProximityScore(2); got != 50 {
		t.Errorf("ProximityScore(2) = %v", got)
	}
	if got := VolumeScore(3); got != 100 {
		t.Errorf("VolumeScore clamps: %v", got)
	}
	if got := VolatilityScore(indicators.VolatilityCompression); got != 80 {
		t.Errorf("compression = %v", got)
	}
	if got := MomentumScore(0, 50, 0); got != 50 {
		t.Errorf("flat momentum = %v", got)
	}
	if up, down := MomentumScore(1, 70, 1), MomentumScore(-1, 70, -1); up <= down {
		t.Errorf("rsi 70 should favour longs: up %v down %v", up, down)
	}
	if got := ConfluenceScore(nil, 3); got != 60 {
		t.Errorf("ConfluenceScore(nil, 3) = %v", got)
	}
}
