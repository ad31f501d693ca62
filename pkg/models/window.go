package models

import "time"

// WindowType classifies a forward date range
type WindowType string

const (
	WindowHighProbability   WindowType = "high_probability"
	WindowModerate          WindowType = "moderate"
	WindowAvoid             WindowType = "avoid"
	WindowExtremeVolatility WindowType = "extreme_volatility"
)

// TradingWindow is one contiguous range of identically classified days
type TradingWindow struct {
	Symbol                string     `json:"symbol"`
	StartDate             time.Time  `json:"start_date"`
	EndDate               time.Time  `json:"end_date"`
	DaysInWindow          int        `json:"days_in_window"`
	Type                  WindowType `json:"type"`
	TechnicalConfluence   float64    `json:"technical_confluence"`
	AstrologicalAlignment float64    `json:"astrological_alignment"`
	CombinedScore         float64    `json:"combined_score"`
	Reasons               []string   `json:"reasons"`
	KeyLevels             []float64  `json:"key_levels"`
}

// FeaturedTicker is a persisted featured row for one category and period
type FeaturedTicker struct {
	Symbol        string        `json:"symbol" db:"symbol"`
	Category      string        `json:"category" db:"category"`
	IngressPeriod string        `json:"ingress_period" db:"ingress_period"`
	Rank          int           `json:"rank" db:"rank"`
	TotalScore    float64       `json:"total_score" db:"total_score"`
	CalculatedAt  time.Time     `json:"calculated_at" db:"calculated_at"`
	Rating        *TickerRating `json:"rating" db:"-"`
}
