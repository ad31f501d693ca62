package astro

import (
	"math"
	"strconv"
	"time"

	"github.com/selivandex/forecastr/pkg/models"
)

// aspectWindowDays is the ±window around a date in which aspects count
const aspectWindowDays = 3

// AspectPoints is the base score per aspect type
var AspectPoints = map[string]float64{
	"conjunction": 0,
	"sextile":     15,
	"trine":       20,
	"square":      -15,
	"opposition":  -10,
}

// AspectScore rates aspects within ±3 days of date, out of 40.
// Neutral (20) without a sector or without aspects in the window.
func AspectScore(date time.Time, aspects, retrogrades []models.AstroEvent, sector *Sector) float64 {
	if sector == nil {
		return 20
	}

	d := models.Day(date)
	from, to := d.AddDate(0, 0, -aspectWindowDays), d.AddDate(0, 0, aspectWindowDays)
	inWindow := func(t time.Time) bool { return !t.Before(from) && !t.After(to) }

	score := 20.0
	found := false
	for _, a := range aspects {
		if !inWindow(a.Date) {
			continue
		}
		found = true

		// Outer-planet rows marked non-primary only contribute the exactness bonus
		if a.Meta("primary_scoring") != "false" {
			points := AspectPoints[a.Meta("aspect_type")]
			if sector.IsRuler(a.Body) || sector.IsRuler(a.Meta("body2")) {
				points *= 1.5
			}
			score += points
		}

		if a.Meta("exact") == "true" && a.Meta("bonus_eligible") == "true" {
			influence, err := strconv.ParseFloat(a.Meta("influence_weight"), 64)
			if err != nil {
				influence = 85
			}
			score += influence / 100 * 5
		}
	}
	if !found {
		return 20
	}

	for _, rx := range retrogrades {
		if inWindow(rx.Date) && rx.Meta("status") == "starts" && sector.IsRuler(rx.Body) {
			score -= 10
		}
	}

	return math.Max(0, math.Min(40, score))
}
