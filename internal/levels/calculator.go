package levels

import (
	"math"
	"sort"
	"time"

	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/pkg/models"
)

// Options tunes a level calculation
type Options struct {
	// CurrentPrice overrides the last close when > 0
	CurrentPrice float64
	// Now overrides the time of the last bar for time projections
	Now time.Time
	// Anchors switches swing high/low to the multi-anchor average when at least one pair resolves
	Anchors []models.SeasonalAnchor
}

// LevelSet is the structured output of the calculator
type LevelSet struct {
	CurrentPrice float64             `json:"current_price"`
	SwingHigh    float64             `json:"swing_high"`
	SwingLow     float64             `json:"swing_low"`
	Fibonacci    []FibLevel          `json:"fibonacci"`
	Pivots       []models.PriceLevel `json:"pivots"`
	Gann         []models.PriceLevel `json:"gann"`
	Resistance   []models.PriceLevel `json:"resistance"`
	Support      []models.PriceLevel `json:"support"`
	AnchorRanges []AnchorRange       `json:"-"`
	Degenerate   bool                `json:"degenerate"`
}

// Empty reports whether no levels were produced
func (l *LevelSet) Empty() bool {
	return len(l.Resistance) == 0 && len(l.Support) == 0
}

// All returns support and resistance merged, nearest first
func (l *LevelSet) All() []models.PriceLevel {
	all := make([]models.PriceLevel, 0, len(l.Resistance)+len(l.Support))
	all = append(all, l.Resistance...)
	all = append(all, l.Support...)
	sortByDistance(all, l.CurrentPrice)
	return all
}

// Nearest returns the closest level on either side
func (l *LevelSet) Nearest() (models.PriceLevel, bool) {
	all := l.All()
	if len(all) == 0 {
		return models.PriceLevel{}, false
	}
	return all[0], true
}

// Static confidences per origin; fibonacci golden ratios get a bonus
const (
	fibConfidence   = 0.7
	pivotConfidence = 0.6
	gannConfidence  = 0.5
	trendConfidence = 0.8
	goldenBonus     = 0.15
	defaultHalfLife = 30
	gannSquareSteps = 4
)

// Calculator derives support/resistance and projects levels forward
type Calculator struct {
	ind *indicators.Calculator
	// Interval between projected bars
	Interval time.Duration
	// HalfLife is the number of bars after which projected confidence halves
	HalfLife int
}

// NewCalculator creates level calculator with daily projection interval
func NewCalculator(ind *indicators.Calculator) *Calculator {
	if ind == nil {
		ind = indicators.NewCalculator()
	}
	return &Calculator{
		ind:      ind,
		Interval: 24 * time.Hour,
		HalfLife: defaultHalfLife,
	}
}

// Calculate builds the level set. No bars yield an empty set.
func (c *Calculator) Calculate(bars []models.Bar, opts Options) *LevelSet {
	set := &LevelSet{}
	if len(bars) == 0 {
		return set
	}

	s := models.ToSeries(bars)
	set.CurrentPrice = s.LastClose()
	if opts.CurrentPrice > 0 {
		set.CurrentPrice = opts.CurrentPrice
	}

	set.SwingHigh, set.SwingLow = maxOf(s.Highs), minOf(s.Lows)
	if len(opts.Anchors) > 0 {
		set.AnchorRanges = AnchorRanges(s, opts.Anchors)
		if high, low, ok := AverageRange(set.AnchorRanges); ok {
			set.SwingHigh, set.SwingLow = high, low
		}
	}

	if set.SwingHigh-set.SwingLow <= 0 {
		// Zero-width set: every ratio collapses onto the low
		set.Degenerate = true
		set.SwingHigh = set.SwingLow
	}

	set.Fibonacci = Fibonacci(set.SwingLow, set.SwingHigh)
	set.Pivots = pivotLevels(s)
	for _, p := range GannSquareOfNine(set.CurrentPrice, gannSquareSteps) {
		set.Gann = append(set.Gann, models.PriceLevel{Price: p, Origin: models.OriginGann, Label: "sq9", Confidence: gannConfidence})
	}

	var candidates []models.PriceLevel
	if !set.Degenerate {
		for _, f := range set.Fibonacci {
			conf := fibConfidence
			if f.Ratio == 0.618 || f.Ratio == 0.382 || f.Ratio == 0.5 {
				conf += goldenBonus
			}
			if f.Extension {
				conf -= 0.1
			}
			candidates = append(candidates, models.PriceLevel{Price: f.Price, Origin: models.OriginFibonacci, Label: f.Key, Confidence: conf})
		}
	}
	candidates = append(candidates, set.Pivots...)
	candidates = append(candidates, set.Gann...)

	set.Resistance, set.Support = bucket(candidates, set.CurrentPrice)
	return set
}

// Project extrapolates the trend line and pivot levels barsAhead bars past the last bar.
// Confidence halves every HalfLife bars.
func (c *Calculator) Project(bars []models.Bar, set *LevelSet, barsAhead int) []models.ProjectedLevel {
	if len(bars) < 2 || barsAhead <= 0 {
		return nil
	}

	s := models.ToSeries(bars)
	trend, err := c.ind.LinearTrend(s)
	if err != nil {
		return nil
	}
	start := s.LastTime()
	current := set.CurrentPrice
	if current <= 0 {
		current = s.LastClose()
	}

	// A well fitting line starts with more confidence
	trendBase := trendConfidence * (0.5 + 0.5*trend.R2)

	out := make([]models.ProjectedLevel, 0, barsAhead*(1+len(set.Pivots)))
	for i := 1; i <= barsAhead; i++ {
		decay := c.Decay(i)
		date := start.Add(time.Duration(i) * c.Interval)

		price := trend.At(i)
		out = append(out, models.ProjectedLevel{
			PriceLevel: models.PriceLevel{
				Price:      price,
				Kind:       kindFor(price, current),
				Origin:     models.OriginTrend,
				Label:      "trend",
				Confidence: trendBase * decay,
			},
			BarsAhead: i,
			Date:      date,
		})

		for _, p := range set.Pivots {
			lvl := p
			lvl.Kind = kindFor(p.Price, current)
			lvl.Confidence = p.Confidence * decay
			out = append(out, models.ProjectedLevel{PriceLevel: lvl, BarsAhead: i, Date: date})
		}
	}
	return out
}

// Decay returns the confidence multiplier for a projection distance
func (c *Calculator) Decay(barsAhead int) float64 {
	half := c.HalfLife
	if half <= 0 {
		half = defaultHalfLife
	}
	return math.Pow(0.5, float64(barsAhead)/float64(half))
}

// pivotLevels computes classic floor pivots from the last bar
func pivotLevels(s *models.Series) []models.PriceLevel {
	n := s.Len() - 1
	h, lo, cl := s.Highs[n], s.Lows[n], s.Closes[n]
	p := (h + lo + cl) / 3

	mk := func(price float64, label string) models.PriceLevel {
		return models.PriceLevel{Price: price, Origin: models.OriginPivot, Label: label, Confidence: pivotConfidence}
	}
	return []models.PriceLevel{
		mk(p, "P"),
		mk(2*p-lo, "R1"),
		mk(2*p-h, "S1"),
		mk(p+(h-lo), "R2"),
		mk(p-(h-lo), "S2"),
	}
}

// bucket splits levels into resistance (above) and support (below), nearest first.
// Levels exactly at the price are dropped.
func bucket(levels []models.PriceLevel, current float64) (resistance, support []models.PriceLevel) {
	for _, l := range levels {
		if l.Price <= 0 {
			continue
		}
		switch {
		case l.Price > current:
			l.Kind = models.Resistance
			resistance = append(resistance, l)
		case l.Price < current:
			l.Kind = models.Support
			support = append(support, l)
		}
	}
	sortByDistance(resistance, current)
	sortByDistance(support, current)
	return resistance, support
}

func sortByDistance(levels []models.PriceLevel, current float64) {
	sort.SliceStable(levels, func(i, j int) bool {
		return math.Abs(levels[i].Price-current) < math.Abs(levels[j].Price-current)
	})
}

func kindFor(price, current float64) models.LevelKind {
	if price >= current {
		return models.Resistance
	}
	return models.Support
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}
