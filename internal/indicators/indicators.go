package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator"
	"gonum.org/v1/gonum/stat"

	"github.com/selivandex/forecastr/pkg/models"
)

// VolatilityState classifies ATR relative to its own recent average
type VolatilityState string

const (
	VolatilityCompression VolatilityState = "compression"
	VolatilityExpansion   VolatilityState = "expansion"
	VolatilityNeutral     VolatilityState = "neutral"
	VolatilityUnknown     VolatilityState = "unknown"
)

// Volatility thresholds on the ATR ratio (current ATR / average ATR)
const (
	CompressionRatio = 0.8
	ExpansionRatio   = 1.5
	ExtremeRatio     = 2.0
)

// Calculator calculates technical indicators from a bar series
type Calculator struct {
	ATRPeriod   int
	TrendWindow int
}

// NewCalculator creates new indicator calculator
func NewCalculator() *Calculator {
	return &Calculator{
		ATRPeriod:   14,
		TrendWindow: 20,
	}
}

// ATR returns the latest Average True Range
func (c *Calculator) ATR(s *models.Series) (float64, error) {
	if s.Len() < c.ATRPeriod+1 {
		return 0, fmt.Errorf("insufficient bars for ATR (need %d, got %d): %w", c.ATRPeriod+1, s.Len(), models.ErrMissingData)
	}

	_, atr := indicator.Atr(c.ATRPeriod, s.Highs, s.Lows, s.Closes)
	if len(atr) == 0 {
		return 0, fmt.Errorf("ATR returned no data")
	}
	return atr[len(atr)-1], nil
}

// ATRRatio compares the latest ATR with the mean ATR over the series
func (c *Calculator) ATRRatio(s *models.Series) (float64, VolatilityState, error) {
	if s.Len() < c.ATRPeriod*2 {
		return 0, VolatilityUnknown, fmt.Errorf("insufficient bars for ATR ratio: %w", models.ErrMissingData)
	}

	_, atr := indicator.Atr(c.ATRPeriod, s.Highs, s.Lows, s.Closes)
	// Skip warmup
	atr = atr[c.ATRPeriod:]
	avg := average(atr)
	if avg <= 0 {
		return 0, VolatilityUnknown, fmt.Errorf("flat ATR: %w", models.ErrDegenerate)
	}

	ratio := atr[len(atr)-1] / avg
	return ratio, ClassifyVolatility(ratio), nil
}

// ClassifyVolatility maps an ATR ratio to a state
func ClassifyVolatility(ratio float64) VolatilityState {
	switch {
	case ratio <= 0:
		return VolatilityUnknown
	case ratio < CompressionRatio:
		return VolatilityCompression
	case ratio > ExpansionRatio:
		return VolatilityExpansion
	default:
		return VolatilityNeutral
	}
}

// EMA returns the latest exponential moving average
func (c *Calculator) EMA(s *models.Series, period int) (float64, error) {
	if s.Len() < period {
		return 0, fmt.Errorf("insufficient bars for EMA(%d): %w", period, models.ErrMissingData)
	}

	ema := indicator.Ema(period, s.Closes)
	if len(ema) == 0 {
		return 0, fmt.Errorf("EMA calculation failed")
	}
	return ema[len(ema)-1], nil
}

// RSI returns the latest 14 period RSI
func (c *Calculator) RSI(s *models.Series) (float64, error) {
	if s.Len() < 15 {
		return 0, fmt.Errorf("insufficient bars for RSI: %w", models.ErrMissingData)
	}

	_, rsi := indicator.Rsi(s.Closes)
	if len(rsi) == 0 {
		return 0, fmt.Errorf("RSI returned no data")
	}
	v := rsi[len(rsi)-1]
	if math.IsNaN(v) {
		return 50, nil
	}
	return v, nil
}

// Trend is a least squares line through recent closes
type Trend struct {
	Intercept float64
	Slope     float64 // price per bar
	// SlopePercent is slope relative to the last close, in percent per bar
	SlopePercent float64
	Window       int
	R2           float64
}

// At returns the trend line value barsAhead bars after the last bar
func (t Trend) At(barsAhead int) float64 {
	return t.Intercept + t.Slope*float64(t.Window-1+barsAhead)
}

// Direction returns +1, -1 or 0 for a flat line
func (t Trend) Direction() int {
	switch {
	case t.SlopePercent > 0.05:
		return 1
	case t.SlopePercent < -0.05:
		return -1
	default:
		return 0
	}
}

// LinearTrend fits a regression over the last TrendWindow closes
func (c *Calculator) LinearTrend(s *models.Series) (Trend, error) {
	n := c.TrendWindow
	if s.Len() < n {
		n = s.Len()
	}
	if n < 2 {
		return Trend{}, fmt.Errorf("insufficient bars for trend: %w", models.ErrMissingData)
	}

	ys := s.Closes[s.Len()-n:]
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) {
		r2 = 0
	}

	last := ys[n-1]
	slopePct := 0.0
	if last != 0 {
		slopePct = beta / last * 100
	}

	return Trend{
		Intercept:    alpha,
		Slope:        beta,
		SlopePercent: slopePct,
		Window:       n,
		R2:           r2,
	}, nil
}

// DetectTrend detects market trend based on moving averages
func (c *Calculator) DetectTrend(s *models.Series) (string, error) {
	if s.Len() < 50 {
		return "unknown", fmt.Errorf("insufficient data for trend detection: %w", models.ErrMissingData)
	}

	ema20, err := c.EMA(s, 20)
	if err != nil {
		return "unknown", err
	}
	ema50, err := c.EMA(s, 50)
	if err != nil {
		return "unknown", err
	}

	price := s.LastClose()
	if price > ema20 && ema20 > ema50 {
		return "uptrend", nil
	} else if price < ema20 && ema20 < ema50 {
		return "downtrend", nil
	}

	return "sideways", nil
}

// VolumeRatio compares the short average volume with the long average
func (c *Calculator) VolumeRatio(s *models.Series, short, long int) float64 {
	if s.Len() < long || short <= 0 {
		return 1
	}
	longAvg := average(s.Volumes[s.Len()-long:])
	if longAvg <= 0 {
		return 1
	}
	return average(s.Volumes[s.Len()-short:]) / longAvg
}

// Swings finds local extremes using a symmetric fractal window.
// A bar is a swing high when its high is the strict maximum of the 2*width+1 bars around it.
func Swings(s *models.Series, width int) []models.Swing {
	var swings []models.Swing
	for i := width; i < s.Len()-width; i++ {
		isHigh, isLow := true, true
		for j := i - width; j <= i+width; j++ {
			if j == i {
				continue
			}
			if s.Highs[j] >= s.Highs[i] {
				isHigh = false
			}
			if s.Lows[j] <= s.Lows[i] {
				isLow = false
			}
		}
		if isHigh {
			swings = append(swings, models.Swing{Type: models.SwingHigh, Price: s.Highs[i], Date: s.Times[i], Index: i})
		}
		if isLow {
			swings = append(swings, models.Swing{Type: models.SwingLow, Price: s.Lows[i], Date: s.Times[i], Index: i})
		}
	}
	return swings
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
