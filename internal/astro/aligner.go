package astro

import (
	"sort"
	"time"

	"github.com/selivandex/forecastr/pkg/models"
)

// TrackedBodies are the bodies whose retrograde status is reported
var TrackedBodies = []string{"Mercury", "Venus", "Mars", "Jupiter", "Saturn"}

// ingressLookbackDays bounds how old the latest solar ingress may be
const ingressLookbackDays = 45

// Aligner maps dates to lunar, retrograde, ingress and aspect state.
// It reads an immutable event snapshot and never mutates it.
type Aligner struct {
	solar       []models.AstroEvent
	lunar       []models.AstroEvent
	retrogrades []models.AstroEvent
	aspects     []models.AstroEvent
	anchors     []models.SeasonalAnchor
	weights     map[models.Favorability]float64
}

// NewAligner indexes events by type. Nil weights use DefaultFavorabilityWeights.
func NewAligner(events []models.AstroEvent, weights map[models.Favorability]float64) *Aligner {
	if weights == nil {
		weights = DefaultFavorabilityWeights
	}
	a := &Aligner{weights: weights}

	normalized := make([]models.AstroEvent, len(events))
	for i, e := range events {
		normalized[i] = models.NormalizeEvent(e)
	}
	sort.SliceStable(normalized, func(i, j int) bool { return normalized[i].Date.Before(normalized[j].Date) })

	var eventAnchors []models.SeasonalAnchor
	for _, e := range normalized {
		switch e.EventType {
		case models.EventIngress:
			if e.IsSolarIngress() {
				a.solar = append(a.solar, e)
			}
		case models.EventLunarPhase:
			a.lunar = append(a.lunar, e)
		case models.EventRetrograde:
			a.retrogrades = append(a.retrogrades, e)
		case models.EventAspect:
			a.aspects = append(a.aspects, e)
		case models.EventSeasonalAnchor:
			if anchor, ok := anchorFromEvent(e); ok {
				eventAnchors = append(eventAnchors, anchor)
			}
		}
	}
	a.anchors = eventAnchors
	return a
}

// IngressPeriod returns the active period for today.
// Without a solar ingress in the lookback window it falls back to the calendar rule.
func (a *Aligner) IngressPeriod(today time.Time) models.IngressPeriod {
	d := models.Day(today)

	cur := -1
	for i, e := range a.solar {
		if e.Date.After(d) {
			break
		}
		cur = i
	}
	if cur < 0 || models.DaysBetween(a.solar[cur].Date, d) > ingressLookbackDays {
		return CalendarPeriod(d)
	}

	start := a.solar[cur].Date
	var end time.Time
	if cur+1 < len(a.solar) {
		end = a.solar[cur+1].Date
	} else {
		// Last known ingress: close at the calendar boundary of the following sign
		end = nextCalendarBoundary(start, a.solar[cur].Sign)
		if !end.After(d) {
			return CalendarPeriod(d)
		}
	}

	return models.IngressPeriod{
		Start:         start,
		End:           end,
		PreviousEnd:   start.AddDate(0, 0, -1),
		Sign:          a.solar[cur].Sign,
		DaysRemaining: max(0, models.DaysBetween(d, end)),
	}
}

// Lunar returns the lunar state at date
func (a *Aligner) Lunar(date time.Time) models.LunarState {
	phase, illum, ok := lunarFromEvents(a.lunar, date)
	if !ok {
		phase, illum = PhaseAt(date)
	}
	fav := PhaseFavorability[phase]
	return models.LunarState{
		Phase:        phase,
		Illumination: illum,
		Favorability: fav,
		Weight:       a.weights[fav],
	}
}

// Retrogrades reports retrograde status per tracked body at date
func (a *Aligner) Retrogrades(date time.Time) map[string]bool {
	d := models.Day(date)
	out := make(map[string]bool, len(TrackedBodies))
	for _, body := range TrackedBodies {
		out[body] = false
	}
	for _, e := range a.retrogrades {
		if e.Date.After(d) {
			break
		}
		if _, tracked := out[e.Body]; tracked {
			out[e.Body] = e.Meta("status") == "starts"
		}
	}
	return out
}

// StationsNear reports whether a tracked body starts retrograde within ±days of date
func (a *Aligner) StationsNear(date time.Time, days int) bool {
	d := models.Day(date)
	for _, e := range a.retrogrades {
		if e.Meta("status") != "starts" {
			continue
		}
		diff := models.DaysBetween(d, e.Date)
		if diff >= -days && diff <= days {
			return true
		}
	}
	return false
}

// AspectScore rates aspects around date for a sector, out of 40
func (a *Aligner) AspectScore(date time.Time, sector *Sector) float64 {
	return AspectScore(date, a.aspects, a.retrogrades, sector)
}

// Anchors returns precomputed seasonal anchors in [from, to], overridden by seasonal_anchor events
func (a *Aligner) Anchors(from, to time.Time) []models.SeasonalAnchor {
	var events []models.SeasonalAnchor
	for _, e := range a.anchors {
		if !e.Date.Before(models.Day(from)) && !e.Date.After(models.Day(to)) {
			events = append(events, e)
		}
	}
	return mergeAnchors(SeasonalAnchors(from, to), events)
}

// Align gathers the full astro view of a date for a sector
func (a *Aligner) Align(date time.Time, sector *Sector) models.Alignment {
	bonus, phase := CycleBonus(date)
	return models.Alignment{
		Date:        models.Day(date),
		Lunar:       a.Lunar(date),
		Retrograde:  a.Retrogrades(date),
		Ingress:     a.IngressPeriod(date),
		CycleBonus:  bonus,
		CyclePhase:  phase,
		AspectScore: a.AspectScore(date, sector),
	}
}

// FavorableDate is a future date whose lunar phase favours entries or exits
type FavorableDate struct {
	Date  time.Time
	Lunar models.LunarState
}

// FavorableDates lists dates in (from, from+days] with favorable_entry or favorable_exit phases
func (a *Aligner) FavorableDates(from time.Time, days int) []FavorableDate {
	start := models.Day(from)
	var out []FavorableDate
	for i := 1; i <= days; i++ {
		d := start.AddDate(0, 0, i)
		l := a.Lunar(d)
		if l.Favorability == models.FavorableEntry || l.Favorability == models.FavorableExit {
			out = append(out, FavorableDate{Date: d, Lunar: l})
		}
	}
	return out
}

// IngressBoundaryNear reports whether a solar ingress falls within ±days of date
func (a *Aligner) IngressBoundaryNear(date time.Time, days int) bool {
	d := models.Day(date)
	if len(a.solar) == 0 {
		p := CalendarPeriod(d)
		return models.DaysBetween(p.Start, d) <= days || models.DaysBetween(d, p.End) <= days
	}
	for _, e := range a.solar {
		diff := models.DaysBetween(d, e.Date)
		if diff >= -days && diff <= days {
			return true
		}
	}
	return false
}

// Confidence is the 0-100 astro confidence: ingress (30) + aspects (40) + lunar (20) + cycle bonus (10)
type Confidence struct {
	Ingress float64
	Aspects float64
	Lunar   float64
	Bonus   float64
	Total   float64
	Tier    string
}

// Confidence scores date for a sector
func (a *Aligner) Confidence(date time.Time, sector *Sector) Confidence {
	period := a.IngressPeriod(date)
	lunar := a.Lunar(date)
	bonus, _ := CycleBonus(date)

	c := Confidence{
		Ingress: IngressScore(period.Sign, sector),
		Aspects: a.AspectScore(date, sector),
		Lunar:   PhaseScores[lunar.Phase],
		Bonus:   bonus,
	}
	c.Total = c.Ingress + c.Aspects + c.Lunar + c.Bonus
	c.Tier = Tier(c.Total)
	return c
}

// Tier labels an astro confidence total
func Tier(total float64) string {
	switch {
	case total >= 85:
		return "featured"
	case total >= 70:
		return "favorable"
	case total >= 50:
		return "neutral"
	default:
		return "unfavorable"
	}
}
