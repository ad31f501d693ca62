package astro

import (
	"math"
	"time"

	"github.com/selivandex/forecastr/pkg/models"
)

const (
	nodalCycleDays   = 6793.5
	cycleBonusPoints = 10
	cycleWindowDays  = 30
)

var cycleEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// cyclePhases are key points of the 18.6 year lunar nodal cycle, in degrees with their orb
var cyclePhases = []struct {
	degree float64
	name   string
	orb    float64
	bonus  bool
}{
	{0, "start", 2, true},
	{90, "first_quadrature", 2, false},
	{137, "fibonacci_38", 3, false},
	{180, "opposition", 1, true},
	{223, "fibonacci_61", 3, false},
	{270, "second_quadrature", 2, false},
	{360, "completion", 1, true},
}

// CyclePosition returns the nodal cycle position in degrees
func CyclePosition(t time.Time) float64 {
	days := float64(models.DaysBetween(cycleEpoch, t))
	pos := math.Mod(days, nodalCycleDays)
	if pos < 0 {
		pos += nodalCycleDays
	}
	return pos / nodalCycleDays * 360
}

// CyclePhase names the key point within orb of t, empty when none
func CyclePhase(t time.Time) (string, bool) {
	pos := CyclePosition(t)
	for _, p := range cyclePhases {
		diff := math.Abs(pos - p.degree)
		if diff < p.orb {
			return p.name, p.bonus && diff < 2
		}
	}
	return "", false
}

// CycleBonus awards 10 points when a bonus key point falls within ±30 days
func CycleBonus(t time.Time) (float64, string) {
	d := models.Day(t)
	for off := -cycleWindowDays; off <= cycleWindowDays; off++ {
		if name, bonus := CyclePhase(d.AddDate(0, 0, off)); bonus {
			return cycleBonusPoints, name
		}
	}
	name, _ := CyclePhase(d)
	return 0, name
}
