package windows

import (
	"sort"
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

func TestMerge(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	types := []models.WindowType{
		models.WindowModerate, models.WindowModerate,
		models.WindowAvoid, models.WindowAvoid, models.WindowAvoid,
		models.WindowModerate,
	}
	var days []day
	for i, typ := range types {
		days = append(days, day{
			date:     start.AddDate(0, 0, i),
			typ:      typ,
			combined: float64(60 + i),
			reasons:  []string{"same reason"},
			levels:   []float64{101.234, 101.231},
		})
	}

	windows := merge("X", days)
	if len(windows) != 3 {
		t.Fatalf("windows = %d, want 3", len(windows))
	}

	want := []struct {
		typ  models.WindowType
		days int
	}{
		{models.WindowModerate, 2},
		{models.WindowAvoid, 3},
		{models.WindowModerate, 1},
	}
	for i, w := range windows {
		if w.Type != want[i].typ || w.DaysInWindow != want[i].days {
			t.Errorf("window %d = %s/%d, want %s/%d", i, w.Type, w.DaysInWindow, want[i].typ, want[i].days)
		}
		if len(w.Reasons) != 1 {
			t.Errorf("window %d reasons not de-duplicated: %v", i, w.Reasons)
		}
		if len(w.KeyLevels) != 1 || w.KeyLevels[0] != 101.23 {
			t.Errorf("window %d key levels = %v, want [101.23]", i, w.KeyLevels)
		}
	}
	if got := windows[0].CombinedScore; got != 60.5 {
		t.Errorf("averaged combined = %v, want 60.5", got)
	}
}

func TestMerge_GapSplitsRun(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	days := []day{
		{date: start, typ: models.WindowAvoid},
		{date: start.AddDate(0, 0, 2), typ: models.WindowAvoid},
	}
	if got := len(merge("X", days)); got != 2 {
		t.Errorf("windows = %d, want 2 for non-consecutive days", got)
	}
}

func TestDetector_Detect(t *testing.T) {
	bars := memory.GenerateBars("ETH-USD", time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), 180, 3000, 0.1)
	d := newDetector()

	t.Run("windows cover the horizon without overlap", func(t *testing.T) {
		windows := d.Detect(Input{
			Symbol:    "ETH-USD",
			Category:  "crypto",
			Bars:      bars,
			Aligner:   astro.NewAligner(nil, nil),
			DaysAhead: 30,
			Limit:     1000,
		})
		if len(windows) == 0 {
			t.Fatal("expected windows")
		}

		sort.Slice(windows, func(i, j int) bool { return windows[i].StartDate.Before(windows[j].StartDate) })
		total := 0
		for i, w := range windows {
			total += w.DaysInWindow
			if models.DaysBetween(w.StartDate, w.EndDate)+1 != w.DaysInWindow {
				t.Errorf("window %d span does not match its day count", i)
			}
			if w.CombinedScore < 0 || w.CombinedScore > 100 {
				t.Errorf("window %d combined %v outside [0,100]", i, w.CombinedScore)
			}
			if i == 0 {
				continue
			}
			prev := windows[i-1]
			if !w.StartDate.After(prev.EndDate) {
				t.Errorf("window %d overlaps the previous one", i)
			}
			if models.DaysBetween(prev.EndDate, w.StartDate) == 1 && prev.Type == w.Type {
				t.Errorf("adjacent windows %d and %d share type %s", i-1, i, w.Type)
			}
		}
		if total != 30 {
			t.Errorf("windows cover %d days, want 30", total)
		}
	})

	t.Run("sorted by combined score and capped", func(t *testing.T) {
		windows := d.Detect(Input{Symbol: "ETH-USD", Category: "crypto", Bars: bars, Aligner: astro.NewAligner(nil, nil), DaysAhead: 60, Limit: 3})
		if len(windows) > 3 {
			t.Fatalf("limit ignored: %d windows", len(windows))
		}
		for i := 1; i < len(windows); i++ {
			if windows[i].CombinedScore > windows[i-1].CombinedScore {
				t.Error("windows not sorted by combined score")
			}
		}
	})

	t.Run("horizon is clamped", func(t *testing.T) {
		days := d.evaluate(Input{Symbol: "ETH-USD", Bars: bars, Aligner: astro.NewAligner(nil, nil), DaysAhead: 1})
		if len(days) != 7 {
			t.Errorf("evaluated %d days, want minimum horizon 7", len(days))
		}
	})

	t.Run("missing history yields nothing", func(t *testing.T) {
		if got := d.Detect(Input{Symbol: "NONE", Aligner: astro.NewAligner(nil, nil), DaysAhead: 30}); got != nil {
			t.Errorf("windows = %v, want nil", got)
		}
	})
}

func TestClassify(t *testing.T) {
	d := newDetector()
	if d.classify(85) != models.WindowHighProbability {
		t.Error("85 should be high probability")
	}
	if d.classify(60) != models.WindowModerate {
		t.Error("60 should be moderate")
	}
	if d.classify(59.9) != models.WindowAvoid {
		t.Error("59.9 should be avoid")
	}
}
