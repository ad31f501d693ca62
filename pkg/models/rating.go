package models

import "time"

// Recommendation is the discrete label derived from the total score
type Recommendation string

const (
	StrongBuy  Recommendation = "strong_buy"
	Buy        Recommendation = "buy"
	Hold       Recommendation = "hold"
	Neutral    Recommendation = "neutral"
	Sell       Recommendation = "sell"
	StrongSell Recommendation = "strong_sell"
)

// KeyLevel is the nearest level the rating is measured against
type KeyLevel struct {
	Price           float64     `json:"price"`
	Kind            LevelKind   `json:"kind"`
	Origin          LevelOrigin `json:"origin,omitempty"`
	DistancePercent float64     `json:"distance_percent"`
	DaysUntil       int         `json:"days_until"`
}

// Scores holds component scores normalised to [0,100]
type Scores struct {
	Confluence      float64 `json:"confluence"`
	Proximity       float64 `json:"proximity"`
	Momentum        float64 `json:"momentum"`
	Seasonal        float64 `json:"seasonal"`
	AspectAlignment float64 `json:"aspect_alignment"`
	Volatility      float64 `json:"volatility"`
	Trend           float64 `json:"trend"`
	Volume          float64 `json:"volume"`
	Technical       float64 `json:"technical"`
	Fundamental     float64 `json:"fundamental"`
	Total           float64 `json:"total"`
}

// Validations lists which independent checks passed (nil = not evaluated)
type Validations struct {
	Fib   *bool `json:"fib,omitempty"`
	Gann  *bool `json:"gann,omitempty"`
	Lunar *bool `json:"lunar,omitempty"`
	ATR   *bool `json:"atr,omitempty"`
}

// Passed counts validations that evaluated true
func (v Validations) Passed() int {
	n := 0
	for _, b := range []*bool{v.Fib, v.Gann, v.Lunar, v.ATR} {
		if b != nil && *b {
			n++
		}
	}
	return n
}

// TimeProjection is a Fibonacci time target for a price level
type TimeProjection struct {
	Label       string    `json:"label"`
	TargetPrice float64   `json:"target_price"`
	TargetDate  time.Time `json:"target_date"`
	TimeRatio   float64   `json:"time_ratio"`
}

// FanLine is a Fibonacci speed line anchored at a swing
type FanLine struct {
	Ratio      float64   `json:"ratio"`
	Slope      float64   `json:"slope"` // price per day
	StartPrice float64   `json:"start_price"`
	StartDate  time.Time `json:"start_date"`
}

// Projections groups forward-looking outputs of a rating
type Projections struct {
	Levels      []ProjectedLevel `json:"levels,omitempty"`
	TimeTargets []TimeProjection `json:"time_targets,omitempty"`
	FanLines    []FanLine        `json:"fan_lines,omitempty"`
}

// IngressAlignment summarises the seasonal context of a rating
type IngressAlignment struct {
	Sign          string    `json:"sign"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	DaysRemaining int       `json:"days_remaining"`
	Sector        string    `json:"sector,omitempty"`
	FavorableSign bool      `json:"favorable_sign"`
	IngressScore  float64   `json:"ingress_score"`
	LunarScore    float64   `json:"lunar_score"`
	CycleBonus    float64   `json:"cycle_bonus"`
	Confidence    float64   `json:"confidence"`
	Tier          string    `json:"tier"`
}

// TickerRating is the aggregated scoring output for one instrument
type TickerRating struct {
	Symbol           string               `json:"symbol"`
	Category         string               `json:"category"`
	CurrentPrice     float64              `json:"current_price"`
	NextKeyLevel     KeyLevel             `json:"next_key_level"`
	Scores           Scores               `json:"scores"`
	Recommendation   Recommendation       `json:"recommendation"`
	Direction        int                  `json:"direction"`
	Convergence      *ConvergenceForecast `json:"convergence,omitempty"`
	Validations      Validations          `json:"validations"`
	Reasons          []string             `json:"reasons"`
	Warnings         []string             `json:"warnings"`
	Projections      Projections          `json:"projections"`
	IngressAlignment IngressAlignment     `json:"ingress_alignment"`
	FeaturedRank     int                  `json:"featured_rank,omitempty"`
	DynamicScore     float64              `json:"dynamic_score,omitempty"`
	IngressPeriod    string               `json:"ingress_period"`
	CalculatedAt     time.Time            `json:"calculated_at"`
}

// NeutralRating returns the zero-valued rating used when a symbol cannot be scored
func NeutralRating(symbol, category, warning string) *TickerRating {
	return &TickerRating{
		Symbol:         symbol,
		Category:       category,
		Recommendation: Neutral,
		Reasons:        []string{},
		Warnings:       []string{warning},
	}
}

// BatchResult is a best-effort batch output with the failures that were skipped
type BatchResult struct {
	Ratings  []*TickerRating `json:"ratings"`
	Warnings []string        `json:"warnings"`
	Errors   []string        `json:"errors"`
}
