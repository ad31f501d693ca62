package models

import "time"

// LevelKind tells whether a level sits above or below price
type LevelKind string

const (
	Support    LevelKind = "support"
	Resistance LevelKind = "resistance"
)

// LevelOrigin names the method a level was derived from
type LevelOrigin string

const (
	OriginFibonacci LevelOrigin = "fibonacci"
	OriginPivot     LevelOrigin = "pivot"
	OriginGann      LevelOrigin = "gann"
	OriginTrend     LevelOrigin = "trend"
)

// PriceLevel is a derived support/resistance candidate
type PriceLevel struct {
	Price      float64     `json:"price"`
	Kind       LevelKind   `json:"kind"`
	Origin     LevelOrigin `json:"origin"`
	Label      string      `json:"label,omitempty"`
	Confidence float64     `json:"confidence"`
}

// ProjectedLevel is a level extrapolated to a future bar
type ProjectedLevel struct {
	PriceLevel
	BarsAhead int       `json:"bars_ahead"`
	Date      time.Time `json:"date"`
}

// SwingType marks a swing high or low
type SwingType string

const (
	SwingHigh SwingType = "high"
	SwingLow  SwingType = "low"
)

// Swing is a local extreme in the bar history
type Swing struct {
	Type  SwingType `json:"type"`
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
	Index int       `json:"-"`
}
