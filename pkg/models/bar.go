package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NewDecimal creates decimal from float64
func NewDecimal(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// ToFloat64 safely converts decimal to float64
func ToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Bar represents one daily OHLCV bar of an instrument
type Bar struct {
	Symbol string          `json:"symbol" db:"symbol"`
	Time   time.Time       `json:"time" db:"time"`
	Open   decimal.Decimal `json:"open" db:"open"`
	High   decimal.Decimal `json:"high" db:"high"`
	Low    decimal.Decimal `json:"low" db:"low"`
	Close  decimal.Decimal `json:"close" db:"close"`
	Volume decimal.Decimal `json:"volume" db:"volume"`
}

// NewBar builds a bar from float values
func NewBar(symbol string, t time.Time, open, high, low, close, volume float64) Bar {
	return Bar{
		Symbol: symbol,
		Time:   t,
		Open:   NewDecimal(open),
		High:   NewDecimal(high),
		Low:    NewDecimal(low),
		Close:  NewDecimal(close),
		Volume: NewDecimal(volume),
	}
}

// Series holds float projections of a bar slice for indicator math
type Series struct {
	Times   []time.Time
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
}

// Len returns number of points in the series
func (s *Series) Len() int {
	return len(s.Closes)
}

// LastClose returns the most recent close, zero when empty
func (s *Series) LastClose() float64 {
	if len(s.Closes) == 0 {
		return 0
	}
	return s.Closes[len(s.Closes)-1]
}

// LastTime returns the time of the most recent bar
func (s *Series) LastTime() time.Time {
	if len(s.Times) == 0 {
		return time.Time{}
	}
	return s.Times[len(s.Times)-1]
}

// ToSeries extracts float slices from bars (expected ascending by time)
func ToSeries(bars []Bar) *Series {
	s := &Series{
		Times:   make([]time.Time, len(bars)),
		Opens:   make([]float64, len(bars)),
		Highs:   make([]float64, len(bars)),
		Lows:    make([]float64, len(bars)),
		Closes:  make([]float64, len(bars)),
		Volumes: make([]float64, len(bars)),
	}
	for i, bar := range bars {
		s.Times[i] = bar.Time
		s.Opens[i] = ToFloat64(bar.Open)
		s.Highs[i] = ToFloat64(bar.High)
		s.Lows[i] = ToFloat64(bar.Low)
		s.Closes[i] = ToFloat64(bar.Close)
		s.Volumes[i] = ToFloat64(bar.Volume)
	}
	return s
}

// Day truncates a timestamp to its UTC calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole calendar days from a to b (negative when b is before a)
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
