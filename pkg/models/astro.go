package models

import "time"

// AstroEventType enumerates reference event kinds
type AstroEventType string

const (
	EventIngress        AstroEventType = "ingress"
	EventLunarPhase     AstroEventType = "lunar_phase"
	EventRetrograde     AstroEventType = "retrograde"
	EventAspect         AstroEventType = "aspect"
	EventSeasonalAnchor AstroEventType = "seasonal_anchor"

	// EventSolarIngressLegacy is the older spelling of a Sun ingress row.
	// Adapters normalise it to EventIngress with Body "Sun".
	EventSolarIngressLegacy AstroEventType = "solar_ingress"
)

// AstroEvent is one row of the append-only astro reference table
type AstroEvent struct {
	Date      time.Time         `json:"date" db:"date"`
	EventType AstroEventType    `json:"event_type" db:"event_type"`
	Body      string            `json:"body" db:"body"`
	Sign      string            `json:"sign,omitempty" db:"sign"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Meta returns a metadata value or empty string
func (e AstroEvent) Meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// IsSolarIngress reports whether the event marks a Sun sign change
func (e AstroEvent) IsSolarIngress() bool {
	return e.EventType == EventIngress && e.Body == "Sun"
}

// NormalizeEvent rewrites legacy solar_ingress rows into the canonical form
func NormalizeEvent(e AstroEvent) AstroEvent {
	if e.EventType == EventSolarIngressLegacy {
		e.EventType = EventIngress
		e.Body = "Sun"
	}
	e.Date = Day(e.Date)
	return e
}

// IngressPeriod is the ~30 day window between two solar sign changes
type IngressPeriod struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	PreviousEnd   time.Time `json:"previous_end"`
	Sign          string    `json:"sign"`
	DaysRemaining int       `json:"days_remaining"`
	// Derived is true when the period came from the calendar fallback instead of events
	Derived bool `json:"derived,omitempty"`
}

// Key identifies the period for cache invalidation
func (p IngressPeriod) Key() string {
	return p.Start.Format("2006-01-02") + "_" + p.Sign
}

// Contains reports whether t falls inside [Start, End)
func (p IngressPeriod) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(p.Start) && d.Before(p.End)
}

// Favorability classifies a lunar phase for entries and exits
type Favorability string

const (
	FavorableEntry   Favorability = "favorable_entry"
	FavorableExit    Favorability = "favorable_exit"
	FavorableNeutral Favorability = "neutral"
	Caution          Favorability = "caution"
)

// LunarState describes the moon on a given date
type LunarState struct {
	Phase        string       `json:"phase"`
	Illumination float64      `json:"illumination"`
	Favorability Favorability `json:"favorability"`
	Weight       float64      `json:"weight"`
}

// Alignment is the aligner's full view of one date
type Alignment struct {
	Date        time.Time       `json:"date"`
	Lunar       LunarState      `json:"lunar"`
	Retrograde  map[string]bool `json:"retrograde"`
	Ingress     IngressPeriod   `json:"ingress"`
	CycleBonus  float64         `json:"cycle_bonus"`
	CyclePhase  string          `json:"cycle_phase,omitempty"`
	AspectScore float64         `json:"aspect_score"`
}

// SeasonalAnchor is a precomputed solstice or equinox date.
// Solstices anchor on the bar high, equinoxes on the bar low.
type SeasonalAnchor struct {
	Date    time.Time `json:"date"`
	Type    string    `json:"type"`
	Sign    string    `json:"sign"`
	UseHigh bool      `json:"use_high"`
}

// EventFilter narrows an astro event query. Zero values mean unbounded.
type EventFilter struct {
	Types []AstroEventType
	From  time.Time
	To    time.Time
}
