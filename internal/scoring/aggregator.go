package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/selivandex/forecastr/internal/astro"
	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
)

// Score bands for the volatility state
const (
	compressionScore = 80
	neutralVolScore  = 55
	expansionScore   = 30
	unknownVolScore  = 50
)

// fibTolerancePercent is how close price must be to a Fibonacci level for the fib validation
const fibTolerancePercent = 1.5

// projectionOffsets are the bar offsets reported under projections.levels
var projectionOffsets = map[int]bool{1: true, 5: true, 10: true, 20: true}

// Input is everything the aggregator needs for one symbol
type Input struct {
	Symbol       string
	Category     string
	Bars         []models.Bar
	CurrentPrice float64
	Convergence  *models.ConvergenceForecast
	Aligner      *astro.Aligner
	Now          time.Time
}

// Aggregator turns levels, indicators and astro alignment into a TickerRating
type Aggregator struct {
	levels  *levels.Calculator
	ind     *indicators.Calculator
	weights WeightSet
}

// NewAggregator creates rating aggregator
func NewAggregator(lc *levels.Calculator, ind *indicators.Calculator, weights WeightSet) *Aggregator {
	return &Aggregator{levels: lc, ind: ind, weights: weights}
}

// Weights returns the active weight set
func (a *Aggregator) Weights() WeightSet {
	return a.weights
}

// Rate scores one symbol. Missing history yields a neutral rating with a warning.
func (a *Aggregator) Rate(in Input) *models.TickerRating {
	if len(in.Bars) == 0 {
		return models.NeutralRating(in.Symbol, in.Category, "no price history available")
	}
	if len(in.Bars) < 2 {
		return models.NeutralRating(in.Symbol, in.Category, "insufficient price history: need at least 2 bars")
	}

	aligner := in.Aligner
	if aligner == nil {
		aligner = astro.NewAligner(nil, a.weights.Favorability)
	}
	now := in.Now
	series := models.ToSeries(in.Bars)
	if now.IsZero() {
		now = series.LastTime()
	}

	r := &models.TickerRating{
		Symbol:       in.Symbol,
		Category:     in.Category,
		CurrentPrice: series.LastClose(),
		Convergence:  in.Convergence,
		Reasons:      []string{},
		Warnings:     []string{},
		CalculatedAt: now,
	}
	if in.CurrentPrice > 0 {
		r.CurrentPrice = in.CurrentPrice
	}

	anchors := aligner.Anchors(series.Times[0], now)
	set := a.levels.Calculate(in.Bars, levels.Options{CurrentPrice: r.CurrentPrice, Now: now, Anchors: anchors})
	if set.Degenerate {
		r.Warnings = append(r.Warnings, "zero price range: fibonacci levels collapsed to a single price")
	}

	atr, atrErr := a.ind.ATR(series)
	if atrErr != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("atr unavailable: %v", atrErr))
	}

	trend, trendErr := a.ind.LinearTrend(series)
	if trendErr != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("trend unavailable: %v", trendErr))
	}

	nearest, hasLevel := set.Nearest()
	if hasLevel {
		r.NextKeyLevel = keyLevel(nearest, r.CurrentPrice, atr)
		r.Scores.Proximity = ProximityScore(r.NextKeyLevel.DistancePercent)
		r.Reasons = append(r.Reasons, fmt.Sprintf("nearest %s %s %s at %.4f (%.2f%% away)",
			nearest.Origin, nearest.Label, nearest.Kind, nearest.Price, r.NextKeyLevel.DistancePercent))
	} else {
		r.Warnings = append(r.Warnings, "no key level found")
	}

	r.Direction = direction(trend, nearest, hasLevel)

	rsi, err := a.ind.RSI(series)
	if err != nil {
		rsi = 50
	}
	r.Scores.Momentum = MomentumScore(trend.SlopePercent, rsi, r.Direction)
	r.Scores.Trend = a.trendScore(series, trend, r.Direction)
	r.Scores.Volume = VolumeScore(a.ind.VolumeRatio(series, 5, 20))

	ratio, state, volErr := a.ind.ATRRatio(series)
	r.Scores.Volatility = VolatilityScore(state)
	if volErr == nil {
		r.Validations.ATR = boolPtr(state != indicators.VolatilityExpansion)
		r.Reasons = append(r.Reasons, fmt.Sprintf("volatility %s (atr ratio %.2f)", state, ratio))
	}

	sector := astro.IdentifySector(in.Symbol, in.Category)
	conf := aligner.Confidence(now, sector)
	r.Scores.Seasonal = SeasonalScore(conf)
	r.Scores.AspectAlignment = clamp(conf.Aspects * 2.5)

	period := aligner.IngressPeriod(now)
	lunar := aligner.Lunar(now)
	r.IngressPeriod = period.Key()
	r.IngressAlignment = models.IngressAlignment{
		Sign:          period.Sign,
		PeriodStart:   period.Start,
		PeriodEnd:     period.End,
		DaysRemaining: period.DaysRemaining,
		FavorableSign: sector != nil && sector.Favors(period.Sign),
		IngressScore:  conf.Ingress,
		LunarScore:    conf.Lunar,
		CycleBonus:    conf.Bonus,
		Confidence:    conf.Total,
		Tier:          conf.Tier,
	}
	if sector != nil {
		r.IngressAlignment.Sector = sector.Name
	}
	if r.IngressAlignment.FavorableSign {
		r.Reasons = append(r.Reasons, fmt.Sprintf("sun in %s favours %s", period.Sign, sector.Name))
	}

	r.Validations.Fib = boolPtr(!set.Degenerate && nearFib(set, r.CurrentPrice))
	swings := indicators.Swings(series, 3)
	gann := levels.ValidateGann(series, swings, atr)
	if len(swings) >= 2 {
		r.Validations.Gann = boolPtr(gann.Valid())
	}
	r.Validations.Lunar = boolPtr(lunarAgrees(lunar.Favorability, r.Direction))
	if *r.Validations.Lunar {
		r.Reasons = append(r.Reasons, fmt.Sprintf("%s moon is %s", lunar.Phase, lunar.Favorability))
	}

	r.Scores.Confluence = ConfluenceScore(in.Convergence, r.Validations.Passed())
	if in.Convergence != nil {
		fs := in.Convergence.ForecastedSwing
		r.Reasons = append(r.Reasons, fmt.Sprintf("convergence of %d methods on %s swing %s",
			len(fs.ConvergingMethods), fs.Type, fs.Date.Format("2006-01-02")))
	}

	s := &r.Scores
	s.Technical = (s.Confluence + s.Proximity + s.Momentum + s.Trend + s.Volatility) / 5
	s.Fundamental = (s.Seasonal + s.AspectAlignment) / 2
	s.Total = clamp(a.weights.Weights.Total(*s))
	r.Recommendation = Recommend(s.Total, r.Direction)

	r.Projections = a.projections(in.Bars, set, now)
	return r
}

func (a *Aggregator) trendScore(s *models.Series, trend indicators.Trend, dir int) float64 {
	state, err := a.ind.DetectTrend(s)
	if err != nil {
		if dir == 0 {
			return 50
		}
		return clamp(50 + 30*trend.R2)
	}
	switch {
	case state == "uptrend" && dir > 0, state == "downtrend" && dir < 0:
		return 80
	case state == "sideways":
		return 50
	default:
		return 30
	}
}

// projections collects projected trend levels, fib time targets and fan lines
func (a *Aggregator) projections(bars []models.Bar, set *levels.LevelSet, now time.Time) models.Projections {
	var p models.Projections
	for _, lvl := range a.levels.Project(bars, set, 20) {
		if lvl.Origin == models.OriginTrend && projectionOffsets[lvl.BarsAhead] {
			p.Levels = append(p.Levels, lvl)
		}
	}

	if len(set.AnchorRanges) == 0 || set.Degenerate {
		return p
	}
	last := set.AnchorRanges[len(set.AnchorRanges)-1]
	var targets []levels.FibLevel
	for _, f := range set.Fibonacci {
		if f.Ratio == 0.382 || f.Ratio == 0.5 || f.Ratio == 0.618 {
			targets = append(targets, f)
		}
	}
	p.TimeTargets = levels.TimeProjections(last.From.Date, last.To.Date, now, targets)
	p.FanLines = levels.FanLines(last.From, last.To)
	return p
}

// Recommend maps total and direction to the label ladder
func Recommend(total float64, dir int) models.Recommendation {
	switch {
	case total >= 85 && dir > 0:
		return models.StrongBuy
	case total >= 85 && dir < 0:
		return models.StrongSell
	case total >= 70 && dir > 0:
		return models.Buy
	case total >= 70 && dir < 0:
		return models.Sell
	case total >= 50:
		return models.Hold
	default:
		return models.Neutral
	}
}

// ProximityScore is an inverse-distance curve: 100 at the level, 50 at 2% away
func ProximityScore(distancePercent float64) float64 {
	return clamp(100 / (1 + math.Abs(distancePercent)/2))
}

// MomentumScore blends slope magnitude with RSI read in the trade direction
func MomentumScore(slopePercent, rsi float64, dir int) float64 {
	slope := 50 + math.Min(math.Abs(slopePercent)*25, 50)
	if dir == 0 {
		slope = 50
	}
	rsiPart := rsi
	if dir < 0 {
		rsiPart = 100 - rsi
	}
	return clamp(0.6*slope + 0.4*rsiPart)
}

// VolatilityScore maps the ATR state to its fixed band
func VolatilityScore(state indicators.VolatilityState) float64 {
	switch state {
	case indicators.VolatilityCompression:
		return compressionScore
	case indicators.VolatilityNeutral:
		return neutralVolScore
	case indicators.VolatilityExpansion:
		return expansionScore
	default:
		return unknownVolScore
	}
}

// VolumeScore is 50 at average volume, 100 at double
func VolumeScore(ratio float64) float64 {
	return clamp(50 * ratio)
}

// SeasonalScore weighs ingress (out of 30) and lunar (out of 20) plus the cycle bonus
func SeasonalScore(c astro.Confidence) float64 {
	return clamp((c.Ingress/30*0.7+c.Lunar/20*0.3)*100 + c.Bonus)
}

// ConfluenceScore takes the stronger of the convergence confidence and passed validations
func ConfluenceScore(conv *models.ConvergenceForecast, passed int) float64 {
	score := 20 * float64(passed)
	if conv != nil {
		score = math.Max(score, 100*conv.ForecastedSwing.FinalConfidence)
	}
	return clamp(score)
}

func keyLevel(lvl models.PriceLevel, current, atr float64) models.KeyLevel {
	dist := math.Abs(lvl.Price - current)
	k := models.KeyLevel{Price: lvl.Price, Kind: lvl.Kind, Origin: lvl.Origin}
	if current > 0 {
		k.DistancePercent = dist / current * 100
	}
	if atr > 0 {
		k.DaysUntil = int(math.Ceil(dist / atr))
	}
	return k
}

// direction follows the trend; a flat trend leans toward a bounce off the nearest level
func direction(trend indicators.Trend, nearest models.PriceLevel, hasLevel bool) int {
	if d := trend.Direction(); d != 0 {
		return d
	}
	if !hasLevel {
		return 0
	}
	if nearest.Kind == models.Support {
		return 1
	}
	return -1
}

func nearFib(set *levels.LevelSet, price float64) bool {
	if price <= 0 {
		return false
	}
	for _, f := range set.Fibonacci {
		if math.Abs(f.Price-price)/price*100 <= fibTolerancePercent {
			return true
		}
	}
	return false
}

func lunarAgrees(f models.Favorability, dir int) bool {
	switch {
	case dir > 0:
		return f == models.FavorableEntry
	case dir < 0:
		return f == models.FavorableExit
	default:
		return f == models.FavorableEntry || f == models.FavorableExit
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
