package astro

import (
	"time"

	"github.com/selivandex/forecastr/pkg/models"
)

// Sign describes a zodiac sign
type Sign struct {
	Name    string
	Ruler   string
	Element string
}

// Signs in tropical order starting at Aries
var Signs = []Sign{
	{"Aries", "Mars", "fire"},
	{"Taurus", "Venus", "earth"},
	{"Gemini", "Mercury", "air"},
	{"Cancer", "Moon", "water"},
	{"Leo", "Sun", "fire"},
	{"Virgo", "Mercury", "earth"},
	{"Libra", "Venus", "air"},
	{"Scorpio", "Mars", "water"},
	{"Sagittarius", "Jupiter", "fire"},
	{"Capricorn", "Saturn", "earth"},
	{"Aquarius", "Saturn", "air"},
	{"Pisces", "Jupiter", "water"},
}

// SignByName looks a sign up, ok=false when unknown
func SignByName(name string) (Sign, bool) {
	for _, s := range Signs {
		if s.Name == name {
			return s, true
		}
	}
	return Sign{}, false
}

// calendarBoundaries are the usual Sun ingress days, in calendar order
var calendarBoundaries = []struct {
	month time.Month
	day   int
	sign  string
}{
	{time.January, 20, "Aquarius"},
	{time.February, 19, "Pisces"},
	{time.March, 21, "Aries"},
	{time.April, 20, "Taurus"},
	{time.May, 21, "Gemini"},
	{time.June, 21, "Cancer"},
	{time.July, 23, "Leo"},
	{time.August, 23, "Virgo"},
	{time.September, 23, "Libra"},
	{time.October, 23, "Scorpio"},
	{time.November, 22, "Sagittarius"},
	{time.December, 22, "Capricorn"},
}

// CalendarPeriod derives the ingress period from calendar dates alone.
// Used when the event table has no recent solar ingress.
func CalendarPeriod(today time.Time) models.IngressPeriod {
	d := models.Day(today)

	var start time.Time
	var sign string
	// Walk boundaries of the previous and current year and keep the last one <= d
	for year := d.Year() - 1; year <= d.Year(); year++ {
		for _, b := range calendarBoundaries {
			t := time.Date(year, b.month, b.day, 0, 0, 0, 0, time.UTC)
			if !t.After(d) {
				start, sign = t, b.sign
			}
		}
	}

	end := nextCalendarBoundary(start, sign)
	return models.IngressPeriod{
		Start:         start,
		End:           end,
		PreviousEnd:   start.AddDate(0, 0, -1),
		Sign:          sign,
		DaysRemaining: max(0, models.DaysBetween(d, end)),
		Derived:       true,
	}
}

// nextCalendarBoundary returns the first boundary strictly after t that leaves sign
func nextCalendarBoundary(t time.Time, sign string) time.Time {
	for year := t.Year(); year <= t.Year()+1; year++ {
		for _, b := range calendarBoundaries {
			c := time.Date(year, b.month, b.day, 0, 0, 0, 0, time.UTC)
			if c.After(t) && b.sign != sign {
				return c
			}
		}
	}
	return t.AddDate(0, 0, 30)
}
