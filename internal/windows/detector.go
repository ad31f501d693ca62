package windows

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/selivandex/forecastr/internal/astro"
	"github.com/selivandex/forecastr/internal/convergence"
	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/internal/scoring"
	"github.com/selivandex/forecastr/pkg/models"
)

// Config tunes window detection
type Config struct {
	MinHorizon            int
	MaxHorizon            int
	DefaultLimit          int
	TechnicalWeight       float64
	AstroWeight           float64
	HighProbability       float64
	Moderate              float64
	PriceTolerancePercent float64
}

// DefaultConfig returns standard thresholds: combined = 0.6*technical + 0.4*astro
func DefaultConfig() Config {
	return Config{
		MinHorizon:            7,
		MaxHorizon:            180,
		DefaultLimit:          5,
		TechnicalWeight:       0.6,
		AstroWeight:           0.4,
		HighProbability:       80,
		Moderate:              60,
		PriceTolerancePercent: 1.5,
	}
}

// Input is one symbol's scan request
type Input struct {
	Symbol    string
	Category  string
	Bars      []models.Bar
	Aligner   *astro.Aligner
	DaysAhead int
	Limit     int
}

// Detector scans future days and merges them into classified windows
type Detector struct {
	levels *levels.Calculator
	ind    *indicators.Calculator
	cfg    Config
}

// NewDetector creates trading window detector
func NewDetector(lc *levels.Calculator, ind *indicators.Calculator, cfg Config) *Detector {
	return &Detector{levels: lc, ind: ind, cfg: cfg}
}

// day is the per-date evaluation before merging
type day struct {
	date      time.Time
	typ       models.WindowType
	technical float64
	astro     float64
	combined  float64
	reasons   []string
	levels    []float64
}

// Detect returns windows sorted by combined score, capped at the limit
func (d *Detector) Detect(in Input) []models.TradingWindow {
	if len(in.Bars) < 2 || in.Aligner == nil {
		return nil
	}
	windows := merge(in.Symbol, d.evaluate(in))

	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].CombinedScore != windows[j].CombinedScore {
			return windows[i].CombinedScore > windows[j].CombinedScore
		}
		return windows[i].StartDate.Before(windows[j].StartDate)
	})

	limit := in.Limit
	if limit <= 0 {
		limit = d.cfg.DefaultLimit
	}
	if len(windows) > limit {
		windows = windows[:limit]
	}
	return windows
}

// evaluate scores each future day of the horizon
func (d *Detector) evaluate(in Input) []day {
	horizon := convergence.ClampHorizon(in.DaysAhead, d.cfg.MinHorizon, d.cfg.MaxHorizon)
	series := models.ToSeries(in.Bars)

	set := d.levels.Calculate(in.Bars, levels.Options{})
	static := set.All()
	tolerance := set.CurrentPrice * d.cfg.PriceTolerancePercent / 100

	trend, _ := d.ind.LinearTrend(series)
	rsi, err := d.ind.RSI(series)
	if err != nil {
		rsi = 50
	}
	dir := trend.Direction()
	momentum := scoring.MomentumScore(trend.SlopePercent, rsi, dir)

	ratio, state, _ := d.ind.ATRRatio(series)
	volatility := scoring.VolatilityScore(state)

	atr, _ := d.ind.ATR(series)
	gannTimes := levels.ValidateGann(series, indicators.Swings(series, 3), atr).TimeTargets()

	sector := astro.IdentifySector(in.Symbol, in.Category)
	start := models.Day(series.LastTime())

	out := make([]day, 0, horizon)
	for i := 1; i <= horizon; i++ {
		date := start.AddDate(0, 0, i)
		price := trend.At(i)
		if trend.Window == 0 {
			price = set.CurrentPrice
		}

		var reasons []string
		var near []float64
		origins := make(map[models.LevelOrigin]bool)
		nearestPct := math.Inf(1)
		for _, lvl := range static {
			if price <= 0 {
				break
			}
			pct := math.Abs(lvl.Price-price) / price * 100
			nearestPct = math.Min(nearestPct, pct)
			if math.Abs(lvl.Price-price) <= tolerance {
				origins[lvl.Origin] = true
				near = append(near, lvl.Price)
			}
		}
		proximity := 0.0
		if !math.IsInf(nearestPct, 1) {
			proximity = scoring.ProximityScore(nearestPct)
		}
		confluence := math.Min(100, 33*float64(len(origins)))
		for _, origin := range []models.LevelOrigin{models.OriginFibonacci, models.OriginPivot, models.OriginGann} {
			if origins[origin] {
				reasons = append(reasons, fmt.Sprintf("projected price near %s level", origin))
			}
		}
		technical := 0.4*proximity + 0.2*momentum + 0.2*volatility + 0.2*confluence
		if hasOffset(gannTimes, i, 1) {
			technical += 15
			reasons = append(reasons, "gann time cycle completes")
		}
		technical = math.Min(100, technical)

		conf := in.Aligner.Confidence(date, sector)
		lunar := in.Aligner.Lunar(date)
		if lunar.Favorability == models.FavorableEntry || lunar.Favorability == models.FavorableExit {
			reasons = append(reasons, fmt.Sprintf("%s moon (%s)", lunar.Phase, lunar.Favorability))
		}
		if conf.Tier == "featured" || conf.Tier == "favorable" {
			reasons = append(reasons, fmt.Sprintf("astro alignment %s", conf.Tier))
		}

		combined := d.cfg.TechnicalWeight*technical + d.cfg.AstroWeight*conf.Total
		typ := d.classify(combined)

		// Volatility spikes cluster around syzygies and stations
		nudged := ratio
		if lunar.Phase == "new" || lunar.Phase == "full" {
			nudged *= 1.15
		}
		if in.Aligner.StationsNear(date, 2) {
			nudged *= 1.10
			reasons = append(reasons, "planetary station nearby")
		}
		if nudged >= indicators.ExtremeRatio {
			typ = models.WindowExtremeVolatility
			reasons = append(reasons, fmt.Sprintf("atr ratio %.2f beyond %.1fx", nudged, indicators.ExtremeRatio))
		}

		out = append(out, day{
			date:      date,
			typ:       typ,
			technical: technical,
			astro:     conf.Total,
			combined:  combined,
			reasons:   reasons,
			levels:    near,
		})
	}
	return out
}

func (d *Detector) classify(combined float64) models.WindowType {
	switch {
	case combined >= d.cfg.HighProbability:
		return models.WindowHighProbability
	case combined >= d.cfg.Moderate:
		return models.WindowModerate
	default:
		return models.WindowAvoid
	}
}

// merge collapses runs of consecutive days with the same type into one window.
// Scores are averaged over the run; reasons and key levels are de-duplicated.
func merge(symbol string, days []day) []models.TradingWindow {
	var out []models.TradingWindow
	for i := 0; i < len(days); {
		j := i
		for j+1 < len(days) && days[j+1].typ == days[i].typ && models.DaysBetween(days[j].date, days[j+1].date) == 1 {
			j++
		}
		out = append(out, window(symbol, days[i:j+1]))
		i = j + 1
	}
	return out
}

const maxReasons = 6

func window(symbol string, run []day) models.TradingWindow {
	w := models.TradingWindow{
		Symbol:       symbol,
		StartDate:    run[0].date,
		EndDate:      run[len(run)-1].date,
		DaysInWindow: len(run),
		Type:         run[0].typ,
		Reasons:      []string{},
		KeyLevels:    []float64{},
	}

	seenReason := make(map[string]bool)
	seenLevel := make(map[float64]bool)
	for _, d := range run {
		w.TechnicalConfluence += d.technical
		w.AstrologicalAlignment += d.astro
		w.CombinedScore += d.combined
		for _, r := range d.reasons {
			if !seenReason[r] && len(w.Reasons) < maxReasons {
				seenReason[r] = true
				w.Reasons = append(w.Reasons, r)
			}
		}
		for _, l := range d.levels {
			rounded := math.Round(l*100) / 100
			if !seenLevel[rounded] {
				seenLevel[rounded] = true
				w.KeyLevels = append(w.KeyLevels, rounded)
			}
		}
	}
	n := float64(len(run))
	w.TechnicalConfluence /= n
	w.AstrologicalAlignment /= n
	w.CombinedScore /= n
	sort.Float64s(w.KeyLevels)
	return w
}

func hasOffset(offsets []int, offset, days int) bool {
	for _, o := range offsets {
		if o-offset >= -days && o-offset <= days {
			return true
		}
	}
	return false
}
