package levels

import (
	"math"

	"github.com/selivandex/forecastr/pkg/models"
)

// GannSquareOfNine returns levels at 45 degree steps around price on the square of nine
func GannSquareOfNine(price float64, steps int) []float64 {
	if price <= 0 {
		return nil
	}
	root := math.Sqrt(price)
	out := make([]float64, 0, steps*2)
	for k := -steps; k <= steps; k++ {
		if k == 0 {
			continue
		}
		r := root + float64(k)*0.25
		if r <= 0 {
			continue
		}
		out = append(out, r*r)
	}
	return out
}

// GannCheck is the fixed-rule Gann validator output
type GannCheck struct {
	TimeSymmetry bool    `json:"time_symmetry"`
	PriceSquare  bool    `json:"price_square"`
	AngleHolding bool    `json:"angle_holding"`
	LegDays      int     `json:"leg_days"`
	DaysSince    int     `json:"days_since"`
	LegRate      float64 `json:"leg_rate"`
}

// Valid reports whether any rule holds
func (g GannCheck) Valid() bool {
	return g.TimeSymmetry || g.PriceSquare || g.AngleHolding
}

// TimeTargets returns bar offsets (from the last bar) where the Gann time cycle completes:
// symmetry with the last leg and the 90/180/360 day counts from the last swing.
func (g GannCheck) TimeTargets() []int {
	if g.LegDays <= 0 {
		return nil
	}
	var out []int
	for _, cycle := range []int{g.LegDays, 90, 180, 360} {
		if off := cycle - g.DaysSince; off > 0 {
			out = append(out, off)
		}
	}
	return out
}

// ValidateGann evaluates time symmetry, price/time squaring and 1x1 angle holding
// against the last two alternating swings.
func ValidateGann(s *models.Series, swings []models.Swing, atr float64) GannCheck {
	a, b, ok := lastLeg(swings)
	if !ok || s.Len() == 0 {
		return GannCheck{}
	}

	legDays := models.DaysBetween(a.Date, b.Date)
	daysSince := models.DaysBetween(b.Date, s.LastTime())
	if legDays <= 0 {
		return GannCheck{}
	}

	check := GannCheck{LegDays: legDays, DaysSince: daysSince}

	tolerance := math.Max(3, 0.1*float64(legDays))
	check.TimeSymmetry = math.Abs(float64(daysSince-legDays)) <= tolerance

	rangePrice := math.Abs(b.Price - a.Price)
	if atr > 0 {
		units := rangePrice / atr
		check.PriceSquare = math.Abs(units-float64(legDays)) <= 0.15*float64(legDays)
	}

	check.LegRate = rangePrice / float64(legDays)
	last := s.LastClose()
	switch b.Type {
	case models.SwingLow:
		check.AngleHolding = last >= b.Price+check.LegRate*float64(daysSince)*0.5
	case models.SwingHigh:
		check.AngleHolding = last <= b.Price-check.LegRate*float64(daysSince)*0.5
	}

	return check
}

// lastLeg returns the last two swings of opposite type
func lastLeg(swings []models.Swing) (models.Swing, models.Swing, bool) {
	for i := len(swings) - 1; i > 0; i-- {
		b := swings[i]
		for j := i - 1; j >= 0; j-- {
			if swings[j].Type != b.Type {
				return swings[j], b, true
			}
		}
	}
	return models.Swing{}, models.Swing{}, false
}
