package levels

import (
	"math"
	"testing"
	"time"

	"github.com/selivandex/forecastr/pkg/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFibonacciSingleAnchor(t *testing.T) {
	bars := []models.Bar{models.NewBar("TEST", day(2025, 1, 2), 105, 120, 100, 110, 1000)}

	set := NewCalculator(nil).Calculate(bars, Options{})
	fib := FibMap(set.Fibonacci)

	if got := fib["level_500"]; got != 110 {
		t.Errorf("level_500 = %v, want 110", got)
	}
	if got := fib["level_618"]; math.Abs(got-112.36) > 1e-9 {
		t.Errorf("level_618 = %v, want 112.36", got)
	}
	if set.Degenerate {
		t.Error("non-zero range flagged degenerate")
	}
}

func TestCalculateEmptyBars(t *testing.T) {
	set := NewCalculator(nil).Calculate(nil, Options{})
	if !set.Empty() {
		t.Fatalf("expected empty level set, got %d resistance %d support", len(set.Resistance), len(set.Support))
	}
	if len(set.Fibonacci) != 0 {
		t.Errorf("expected no fibonacci levels, got %d", len(set.Fibonacci))
	}
	if _, ok := set.Nearest(); ok {
		t.Error("Nearest should report no level")
	}
}

func TestLevelKey(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0.5, "level_500"},
		{0.618, "level_618"},
		{1.272, "level_1272"},
		{-0.272, "level_m272"},
		{0, "level_0"},
	}
	for _, tt := range tests {
		if got := LevelKey(tt.ratio); got != tt.want {
			t.Errorf("LevelKey(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestDegenerateRange(t *testing.T) {
	bars := []models.Bar{
		models.NewBar("FLAT", day(2025, 1, 2), 50, 50, 50, 50, 10),
		models.NewBar("FLAT", day(2025, 1, 3), 50, 50, 50, 50, 10),
	}
	set := NewCalculator(nil).Calculate(bars, Options{})
	if !set.Degenerate {
		t.Fatal("expected degenerate set")
	}
	for _, l := range set.All() {
		if l.Origin == models.OriginFibonacci {
			t.Errorf("degenerate set must not emit fibonacci levels, got %+v", l)
		}
	}
}

func TestSupportResistanceBuckets(t *testing.T) {
	var bars []models.Bar
	for i := 0; i < 30; i++ {
		p := 100 + float64(i%10)
		bars = append(bars, models.NewBar("X", day(2025, 1, 1).AddDate(0, 0, i), p, p+2, p-2, p, 100))
	}
	set := NewCalculator(nil).Calculate(bars, Options{})

	for _, l := range set.Resistance {
		if l.Price <= set.CurrentPrice {
			t.Errorf("resistance %v not above price %v", l.Price, set.CurrentPrice)
		}
	}
	for _, l := range set.Support {
		if l.Price >= set.CurrentPrice {
			t.Errorf("support %v not below price %v", l.Price, set.CurrentPrice)
		}
	}
	for i := 1; i < len(set.Resistance); i++ {
		if set.Resistance[i].Price < set.Resistance[i-1].Price {
			t.Fatal("resistance not ordered nearest first")
		}
	}
}

func TestProjectDecay(t *testing.T) {
	c := NewCalculator(nil)
	if got := c.Decay(c.HalfLife); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Decay(half life) = %v, want 0.5", got)
	}

	var bars []models.Bar
	for i := 0; i < 20; i++ {
		p := 100 + float64(i)
		bars = append(bars, models.NewBar("UP", day(2025, 3, 1).AddDate(0, 0, i), p, p+1, p-1, p, 100))
	}
	set := c.Calculate(bars, Options{})
	projected := c.Project(bars, set, 5)
	if len(projected) == 0 {
		t.Fatal("expected projections")
	}

	var prev float64 = math.Inf(1)
	for _, p := range projected {
		if p.Origin != models.OriginTrend {
			continue
		}
		if p.Confidence >= prev {
			t.Errorf("trend confidence did not decay at %d bars ahead", p.BarsAhead)
		}
		prev = p.Confidence
	}
}

func TestAnchorPriceTolerance(t *testing.T) {
	bars := []models.Bar{
		models.NewBar("X", day(2025, 6, 19), 10, 15, 9, 12, 1),
		models.NewBar("X", day(2025, 6, 23), 10, 18, 8, 12, 1),
	}
	s := models.ToSeries(bars)

	solstice := models.SeasonalAnchor{Date: day(2025, 6, 21), Type: "summer_solstice", UseHigh: true}
	p, ok := AnchorPrice(s, solstice)
	if !ok {
		t.Fatal("expected bar within tolerance")
	}
	// Ties prefer the earlier offset
	if p.Price != 15 {
		t.Errorf("anchor price = %v, want 15 (high of 06-19)", p.Price)
	}

	far := models.SeasonalAnchor{Date: day(2025, 7, 10), Type: "summer_solstice", UseHigh: true}
	if _, ok := AnchorPrice(s, far); ok {
		t.Error("anchor outside tolerance should not resolve")
	}
}

func TestFibonacciMonotonic(t *testing.T) {
	tests := []struct {
		name      string
		low, high float64
	}{
		{"unit range", 0, 1},
		{"equity", 100, 120},
		{"penny", 0.0012, 0.0031},
		{"wide", 15, 64000},
		{"flat", 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fib := Fibonacci(tt.low, tt.high)
			m := FibMap(fib)
			if math.Abs(m["level_0"]-tt.low) > 1e-9 {
				t.Errorf("level_0 = %v, want %v", m["level_0"], tt.low)
			}
			if math.Abs(m["level_1000"]-tt.high) > 1e-9 {
				t.Errorf("level_1000 = %v, want %v", m["level_1000"], tt.high)
			}
			if len(fib) != len(RetracementRatios)+len(ExtensionRatios) {
				t.Fatalf("got %d levels", len(fib))
			}
			for i := 1; i < len(fib); i++ {
				if fib[i].Ratio <= fib[i-1].Ratio {
					t.Fatalf("ratios not ascending at %d: %v <= %v", i, fib[i].Ratio, fib[i-1].Ratio)
				}
				if fib[i].Price < fib[i-1].Price {
					t.Errorf("%s = %v below %s = %v", fib[i].Key, fib[i].Price, fib[i-1].Key, fib[i-1].Price)
				}
			}
		})
	}
}
