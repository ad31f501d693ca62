package engine

import (
	"math"

	"github.com/selivandex/forecastr/internal/indicators"
	"github.com/selivandex/forecastr/internal/scoring"
	"github.com/selivandex/forecastr/pkg/models"
)

// Post-reversal thresholds
const (
	reversalLookbackBars = 10
	reversalMinMove      = 3.0 // percent
	reversalMinBars      = 25
	reversalSwingWidth   = 3
)

// DetectReversal reports a symbol whose latest swing sits within the last bars and
// price has since moved at least 3% away with momentum and volume agreeing.
func DetectReversal(symbol, category string, bars []models.Bar, ind *indicators.Calculator) (*models.ReversalOpportunity, bool) {
	if len(bars) < reversalMinBars {
		return nil, false
	}
	s := models.ToSeries(bars)
	swings := indicators.Swings(s, reversalSwingWidth)
	if len(swings) == 0 {
		return nil, false
	}
	swing := swings[len(swings)-1]
	last := s.Len() - 1
	if last-swing.Index > reversalLookbackBars || swing.Price <= 0 {
		return nil, false
	}

	current := s.LastClose()
	dir := 1
	move := (current - swing.Price) / swing.Price * 100
	if swing.Type == models.SwingHigh {
		dir = -1
		move = -move
	}
	if move < reversalMinMove {
		return nil, false
	}

	rsi, err := ind.RSI(s)
	if err != nil {
		return nil, false
	}
	if (dir > 0 && rsi <= 50) || (dir < 0 && rsi >= 50) {
		return nil, false
	}

	volume := ind.VolumeRatio(s, 5, 20)
	if volume < 1 {
		return nil, false
	}

	trend, _ := ind.LinearTrend(s)
	momentum := scoring.MomentumScore(trend.SlopePercent, rsi, dir)

	confidence := 0.4*math.Min(move/10, 1) + 0.4*momentum/100 + 0.2*math.Min(volume, 2)/2

	direction := "bullish"
	if dir < 0 {
		direction = "bearish"
	}
	return &models.ReversalOpportunity{
		Symbol:            symbol,
		Category:          category,
		Direction:         direction,
		ReversalDate:      swing.Date,
		ReversalPrice:     swing.Price,
		CurrentPrice:      current,
		MovePercent:       move,
		DaysSinceReversal: models.DaysBetween(swing.Date, s.LastTime()),
		MomentumScore:     momentum,
		VolumeRatio:       volume,
		Confidence:        math.Min(1, confidence),
	}, true
}
