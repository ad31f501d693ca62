package convergence

import (
	"math"
	"sort"
	"time"

	"github.com/selivandex/forecastr/internal/astro"
	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
)

// Method names reported in ConvergingMethods
const (
	MethodFibonacci = "fibonacci"
	MethodPivot     = "pivot"
	MethodGann      = "gann"
	MethodTrend     = "trend"
	MethodLunar     = "lunar"
)

// Config holds detector tuning
type Config struct {
	MinHorizon            int
	MaxHorizon            int
	ProximityDays         int
	PriceTolerancePercent float64
	LunarBoost            float64
	IngressBoost          float64
	SwingWidth            int
}

// DefaultConfig returns the standard detector settings
func DefaultConfig() Config {
	return Config{
		MinHorizon:            7,
		MaxHorizon:            180,
		ProximityDays:         3,
		PriceTolerancePercent: 1.5,
		LunarBoost:            0.10,
		IngressBoost:          0.05,
		SwingWidth:            3,
	}
}

// ClampHorizon bounds days ahead to [min, max]
func ClampHorizon(days, min, max int) int {
	if days < min {
		return min
	}
	if days > max {
		return max
	}
	return days
}

// FinalConfidence is base + boost clamped to [0, 1]
func FinalConfidence(base, boost float64) float64 {
	return math.Max(0, math.Min(1, base+boost))
}

// Input is one symbol's snapshot for detection
type Input struct {
	Symbol       string
	Category     string
	CurrentPrice float64
	Bars         []models.Bar
	Horizon      int
	Aligner      *astro.Aligner
}

// Detector finds future swings where level projections and astro timing agree
type Detector struct {
	levels *levels.Calculator
	ind    *indicators.Calculator
	cfg    Config
}

// NewDetector creates convergence detector
func NewDetector(lc *levels.Calculator, ind *indicators.Calculator, cfg Config) *Detector {
	return &Detector{levels: lc, ind: ind, cfg: cfg}
}

// Config returns detector settings
func (d *Detector) Config() Config {
	return d.cfg
}

type candidate struct {
	offset  int
	date    time.Time
	price   float64
	typ     models.SwingType
	methods []string
	base    float64
	boost   float64
}

// Detect returns the strongest convergence within the horizon, ok=false when none exists
func (d *Detector) Detect(in Input) (*models.ConvergenceForecast, bool) {
	if len(in.Bars) < 2 || in.Aligner == nil {
		return nil, false
	}

	horizon := ClampHorizon(in.Horizon, d.cfg.MinHorizon, d.cfg.MaxHorizon)
	series := models.ToSeries(in.Bars)

	set := d.levels.Calculate(in.Bars, levels.Options{CurrentPrice: in.CurrentPrice})
	if set.Empty() || set.CurrentPrice <= 0 {
		return nil, false
	}
	current := set.CurrentPrice
	static := set.All()

	trendByOffset := make(map[int]models.ProjectedLevel, horizon)
	for _, p := range d.levels.Project(in.Bars, set, horizon) {
		if p.Origin == models.OriginTrend {
			trendByOffset[p.BarsAhead] = p
		}
	}

	swings := indicators.Swings(series, d.cfg.SwingWidth)
	atr, _ := d.ind.ATR(series)
	gann := levels.ValidateGann(series, swings, atr)
	gannTimes := gann.TimeTargets()

	favorable := in.Aligner.FavorableDates(series.LastTime(), horizon+d.cfg.ProximityDays)
	tolerance := current * d.cfg.PriceTolerancePercent / 100

	var best *candidate
	for i := 1; i <= horizon; i++ {
		trend, ok := trendByOffset[i]
		if !ok {
			continue
		}
		c := d.evaluate(in.Aligner, trend, static, tolerance, current, gannTimes, favorable)
		if c == nil {
			continue
		}
		c.offset = i
		if best == nil || better(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil, false
	}

	return &models.ConvergenceForecast{
		Symbol:    in.Symbol,
		Category:  in.Category,
		LastSwing: lastSwing(swings, series),
		ForecastedSwing: models.ForecastedSwing{
			Type:              best.typ,
			Price:             best.price,
			Date:              best.date,
			ConvergingMethods: best.methods,
			BaseConfidence:    best.base,
			AstroBoost:        best.boost,
			FinalConfidence:   FinalConfidence(best.base, best.boost),
		},
	}, true
}

// evaluate checks one projected trend point against static levels and astro timing
func (d *Detector) evaluate(
	aligner *astro.Aligner,
	trend models.ProjectedLevel,
	static []models.PriceLevel,
	tolerance, current float64,
	gannTimes []int,
	favorable []astro.FavorableDate,
) *candidate {
	bestByOrigin := make(map[models.LevelOrigin]models.PriceLevel)
	for _, lvl := range static {
		if math.Abs(lvl.Price-trend.Price) > tolerance {
			continue
		}
		if prev, seen := bestByOrigin[lvl.Origin]; !seen || lvl.Confidence > prev.Confidence {
			bestByOrigin[lvl.Origin] = lvl
		}
	}
	// A swing needs at least one static price level under the projected trend
	if len(bestByOrigin) == 0 {
		return nil
	}

	methods := []string{MethodTrend}
	confs := []float64{trend.Confidence}
	prices := []float64{trend.Price}
	for _, origin := range []models.LevelOrigin{models.OriginFibonacci, models.OriginPivot, models.OriginGann} {
		lvl, ok := bestByOrigin[origin]
		if !ok {
			continue
		}
		methods = append(methods, string(origin))
		confs = append(confs, lvl.Confidence*d.levels.Decay(trend.BarsAhead))
		prices = append(prices, lvl.Price)
	}

	if _, hasGann := bestByOrigin[models.OriginGann]; !hasGann && nearOffset(gannTimes, trend.BarsAhead, d.cfg.ProximityDays) {
		methods = append(methods, MethodGann)
	}

	typ := models.SwingLow
	if trend.Price > current {
		typ = models.SwingHigh
	}

	boost := 0.0
	if fav, ok := nearestFavorable(favorable, trend.Date, d.cfg.ProximityDays); ok {
		methods = append(methods, MethodLunar)
		if matchesDirection(fav.Lunar.Favorability, typ) {
			boost += d.cfg.LunarBoost * fav.Lunar.Weight
		}
	}
	if aligner.IngressBoundaryNear(trend.Date, d.cfg.ProximityDays) {
		boost += d.cfg.IngressBoost
	}

	base := mean(confs) + 0.05*float64(len(methods)-2)
	return &candidate{
		date:    trend.Date,
		price:   mean(prices),
		typ:     typ,
		methods: methods,
		base:    math.Max(0, math.Min(1, base)),
		boost:   boost,
	}
}

// better orders candidates: more methods, then higher base confidence, then nearer date
func better(a, b *candidate) bool {
	if len(a.methods) != len(b.methods) {
		return len(a.methods) > len(b.methods)
	}
	if a.base != b.base {
		return a.base > b.base
	}
	return a.offset < b.offset
}

// matchesDirection: entries favour lows, exits favour highs
func matchesDirection(f models.Favorability, typ models.SwingType) bool {
	return (f == models.FavorableEntry && typ == models.SwingLow) ||
		(f == models.FavorableExit && typ == models.SwingHigh)
}

func nearestFavorable(dates []astro.FavorableDate, target time.Time, days int) (astro.FavorableDate, bool) {
	bestDiff := days + 1
	var best astro.FavorableDate
	for _, f := range dates {
		diff := models.DaysBetween(target, f.Date)
		if diff < 0 {
			diff = -diff
		}
		if diff <= days && diff < bestDiff {
			best, bestDiff = f, diff
		}
	}
	return best, bestDiff <= days
}

func nearOffset(offsets []int, offset, days int) bool {
	for _, o := range offsets {
		if o-offset >= -days && o-offset <= days {
			return true
		}
	}
	return false
}

// lastSwing returns the latest swing point, or the last bar when none was detected
func lastSwing(swings []models.Swing, s *models.Series) models.Swing {
	if len(swings) > 0 {
		return swings[len(swings)-1]
	}
	n := s.Len() - 1
	if s.Closes[n] >= s.Closes[0] {
		return models.Swing{Type: models.SwingHigh, Price: s.Highs[n], Date: s.Times[n], Index: n}
	}
	return models.Swing{Type: models.SwingLow, Price: s.Lows[n], Date: s.Times[n], Index: n}
}

// Rank orders forecasts by final confidence (ties: more methods, then symbol) and assigns ranks from 1
func Rank(forecasts []*models.ConvergenceForecast) {
	sort.SliceStable(forecasts, func(i, j int) bool {
		a, b := forecasts[i].ForecastedSwing, forecasts[j].ForecastedSwing
		if a.FinalConfidence != b.FinalConfidence {
			return a.FinalConfidence > b.FinalConfidence
		}
		if len(a.ConvergingMethods) != len(b.ConvergingMethods) {
			return len(a.ConvergingMethods) > len(b.ConvergingMethods)
		}
		return forecasts[i].Symbol < forecasts[j].Symbol
	})
	for i := range forecasts {
		forecasts[i].Rank = i + 1
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
