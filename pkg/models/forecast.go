package models

import "time"

// ForecastedSwing is a future swing where independent methods converge
type ForecastedSwing struct {
	Type              SwingType `json:"type"`
	Price             float64   `json:"price"`
	Date              time.Time `json:"date"`
	ConvergingMethods []string  `json:"converging_methods"`
	BaseConfidence    float64   `json:"base_confidence"`
	AstroBoost        float64   `json:"astro_boost"`
	FinalConfidence   float64   `json:"final_confidence"`
}

// ConvergenceForecast pairs the last observed swing with the forecasted one
type ConvergenceForecast struct {
	Symbol          string          `json:"symbol"`
	Category        string          `json:"category,omitempty"`
	LastSwing       Swing           `json:"last_swing"`
	ForecastedSwing ForecastedSwing `json:"forecasted_swing"`
	Rank            int             `json:"rank"`
}

// ReversalOpportunity is a symbol moving with momentum away from a fresh reversal
type ReversalOpportunity struct {
	Symbol            string    `json:"symbol"`
	Category          string    `json:"category"`
	Direction         string    `json:"direction"` // bullish or bearish
	ReversalDate      time.Time `json:"reversal_date"`
	ReversalPrice     float64   `json:"reversal_price"`
	CurrentPrice      float64   `json:"current_price"`
	MovePercent       float64   `json:"move_percent"`
	DaysSinceReversal int       `json:"days_since_reversal"`
	MomentumScore     float64   `json:"momentum_score"`
	VolumeRatio       float64   `json:"volume_ratio"`
	Confidence        float64   `json:"confidence"`
}
