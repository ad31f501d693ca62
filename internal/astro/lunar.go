package astro

import (
	"math"
	"strconv"
	"time"

	"github.com/selivandex/forecastr/pkg/models"
)

const (
	synodicMonth = 29.530588853
	// staleLunarDays bounds how old a lunar_phase event may be before falling back to arithmetic
	staleLunarDays = 7
)

// referenceNewMoon is the new moon of 2000-01-06 18:14 UTC
var referenceNewMoon = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

// phaseBounds maps moon-sun elongation to phase name
var phaseBounds = []struct {
	upper float64
	name  string
}{
	{22.5, "new"},
	{67.5, "waxing_crescent"},
	{112.5, "first_quarter"},
	{157.5, "waxing_gibbous"},
	{202.5, "full"},
	{247.5, "waning_gibbous"},
	{292.5, "last_quarter"},
	{337.5, "waning_crescent"},
	{360, "new"},
}

// PhaseFavorability is the fixed phase -> favorability lookup
var PhaseFavorability = map[string]models.Favorability{
	"new":             models.FavorableEntry,
	"waxing_crescent": models.FavorableEntry,
	"first_quarter":   models.FavorableNeutral,
	"waxing_gibbous":  models.FavorableNeutral,
	"full":            models.FavorableExit,
	"waning_gibbous":  models.FavorableExit,
	"last_quarter":    models.Caution,
	"waning_crescent": models.Caution,
}

// PhaseScores rate each phase out of 20
var PhaseScores = map[string]float64{
	"new":             18,
	"waxing_crescent": 16,
	"first_quarter":   15,
	"waxing_gibbous":  14,
	"full":            12,
	"waning_gibbous":  10,
	"last_quarter":    8,
	"waning_crescent": 6,
}

// DefaultFavorabilityWeights are the default weight per favorability class
var DefaultFavorabilityWeights = map[models.Favorability]float64{
	models.FavorableEntry:   1.0,
	models.FavorableExit:    0.8,
	models.FavorableNeutral: 0.5,
	models.Caution:          0.2,
}

// elongation returns the moon-sun angle in degrees derived from the mean synodic month
func elongation(t time.Time) float64 {
	days := t.Sub(referenceNewMoon).Hours() / 24
	age := math.Mod(days, synodicMonth)
	if age < 0 {
		age += synodicMonth
	}
	return age / synodicMonth * 360
}

// PhaseAt computes phase name and illumination percent without ephemeris data
func PhaseAt(t time.Time) (string, float64) {
	// Evaluate at noon UTC so a calendar day maps to one phase
	angle := elongation(models.Day(t).Add(12 * time.Hour))
	illumination := (1 - math.Cos(angle*math.Pi/180)) / 2 * 100

	phase := "new"
	for _, b := range phaseBounds {
		if angle < b.upper {
			phase = b.name
			break
		}
	}
	return phase, math.Round(illumination*10) / 10
}

// lunarFromEvents picks the latest lunar_phase event <= date, if recent enough
func lunarFromEvents(events []models.AstroEvent, date time.Time) (string, float64, bool) {
	d := models.Day(date)
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Date.After(d) {
			continue
		}
		if models.DaysBetween(e.Date, d) > staleLunarDays {
			return "", 0, false
		}
		phase := e.Meta("phase")
		if _, known := PhaseFavorability[phase]; !known {
			return "", 0, false
		}
		illum, err := strconv.ParseFloat(e.Meta("illumination"), 64)
		if err != nil {
			_, illum = PhaseAt(d)
		}
		return phase, illum, true
	}
	return "", 0, false
}
