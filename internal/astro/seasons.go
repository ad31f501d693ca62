package astro

import (
	"sort"
	"time"

	"github.com/selivandex/forecastr/pkg/models"
)

// seasonalDays holds UTC dates of the March equinox, June solstice,
// September equinox and December solstice per year.
var seasonalDays = map[int][4]int{
	2015: {20, 21, 23, 22},
	2016: {20, 20, 22, 21},
	2017: {20, 21, 22, 21},
	2018: {20, 21, 23, 21},
	2019: {20, 21, 23, 22},
	2020: {20, 20, 22, 21},
	2021: {20, 21, 22, 21},
	2022: {20, 21, 23, 21},
	2023: {20, 21, 23, 22},
	2024: {20, 20, 22, 21},
	2025: {20, 21, 22, 21},
	2026: {20, 21, 23, 21},
	2027: {20, 21, 23, 22},
	2028: {20, 20, 22, 21},
	2029: {20, 21, 22, 21},
	2030: {20, 21, 22, 21},
}

var seasonKinds = [4]struct {
	month   time.Month
	kind    string
	sign    string
	useHigh bool
}{
	{time.March, "vernal_equinox", "Aries", false},
	{time.June, "summer_solstice", "Cancer", true},
	{time.September, "autumn_equinox", "Libra", false},
	{time.December, "winter_solstice", "Capricorn", true},
}

// SeasonalAnchors returns the precomputed anchors within [from, to]
func SeasonalAnchors(from, to time.Time) []models.SeasonalAnchor {
	from, to = models.Day(from), models.Day(to)

	var out []models.SeasonalAnchor
	for year := from.Year(); year <= to.Year(); year++ {
		days, ok := seasonalDays[year]
		if !ok {
			continue
		}
		for i, k := range seasonKinds {
			d := time.Date(year, k.month, days[i], 0, 0, 0, 0, time.UTC)
			if d.Before(from) || d.After(to) {
				continue
			}
			out = append(out, models.SeasonalAnchor{Date: d, Type: k.kind, Sign: k.sign, UseHigh: k.useHigh})
		}
	}
	return out
}

// anchorFromEvent converts a seasonal_anchor event; metadata "type" names the season
func anchorFromEvent(e models.AstroEvent) (models.SeasonalAnchor, bool) {
	kind := e.Meta("type")
	for _, k := range seasonKinds {
		if k.kind == kind {
			return models.SeasonalAnchor{Date: models.Day(e.Date), Type: kind, Sign: k.sign, UseHigh: k.useHigh}, true
		}
	}
	return models.SeasonalAnchor{}, false
}

// mergeAnchors combines table anchors with event anchors; events win on the same season and year
func mergeAnchors(table, events []models.SeasonalAnchor) []models.SeasonalAnchor {
	key := func(a models.SeasonalAnchor) string {
		return a.Type + a.Date.Format("2006")
	}

	byKey := make(map[string]models.SeasonalAnchor, len(table)+len(events))
	for _, a := range table {
		byKey[key(a)] = a
	}
	for _, a := range events {
		byKey[key(a)] = a
	}

	out := make([]models.SeasonalAnchor, 0, len(byKey))
	for _, a := range byKey {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
