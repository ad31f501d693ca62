package levels

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/selivandex/forecastr/pkg/models"
)

// RetracementRatios are the standard retracement ratios between swing low (0) and high (1)
var RetracementRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 0.886, 1.0}

// ExtensionRatios lie beyond the swing range and use the same linear formula
var ExtensionRatios = []float64{-0.618, -0.272, 1.272, 1.618, 2.0, 2.618}

// FanRatios are the Fibonacci speed line ratios
var FanRatios = []float64{0.382, 0.5, 0.618}

// TimeRatios project anchor spans forward in time
var TimeRatios = []float64{1.0, 1.272, 1.618, 2.618}

// FibLevel is one price computed as low + (high-low)*ratio
type FibLevel struct {
	Key       string  `json:"key"`
	Ratio     float64 `json:"ratio"`
	Price     float64 `json:"price"`
	Extension bool    `json:"extension"`
}

// LevelKey formats a ratio as level_<ratio*1000>, negative ratios as level_m<abs>
func LevelKey(ratio float64) string {
	n := int(math.Round(ratio * 1000))
	if n < 0 {
		return fmt.Sprintf("level_m%d", -n)
	}
	return fmt.Sprintf("level_%d", n)
}

// Fibonacci computes retracement and extension levels sorted by ratio
func Fibonacci(low, high float64) []FibLevel {
	diff := high - low
	out := make([]FibLevel, 0, len(RetracementRatios)+len(ExtensionRatios))
	for _, r := range RetracementRatios {
		out = append(out, FibLevel{Key: LevelKey(r), Ratio: r, Price: low + diff*r})
	}
	for _, r := range ExtensionRatios {
		out = append(out, FibLevel{Key: LevelKey(r), Ratio: r, Price: low + diff*r, Extension: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ratio < out[j].Ratio })
	return out
}

// FibMap indexes levels by key
func FibMap(levels []FibLevel) map[string]float64 {
	m := make(map[string]float64, len(levels))
	for _, l := range levels {
		m[l.Key] = l.Price
	}
	return m
}

// AnchorPoint is a seasonal anchor resolved to a price
type AnchorPoint struct {
	Anchor models.SeasonalAnchor
	Price  float64
	Date   time.Time
}

// AnchorRange is the high/low derived from one consecutive anchor pair
type AnchorRange struct {
	From AnchorPoint
	To   AnchorPoint
	High float64
	Low  float64
}

// anchorToleranceDays is how far from the anchor date a bar may be used
const anchorToleranceDays = 3

// AnchorPrice finds the bar on the anchor date, or the nearest within ±3 days,
// preferring earlier offsets on ties. Solstices use the high, equinoxes the low.
func AnchorPrice(s *models.Series, anchor models.SeasonalAnchor) (AnchorPoint, bool) {
	byDay := make(map[time.Time]int, s.Len())
	for i, t := range s.Times {
		byDay[models.Day(t)] = i
	}

	target := models.Day(anchor.Date)
	offsets := []int{0, -1, 1, -2, 2, -3, 3}
	for _, off := range offsets {
		if off < -anchorToleranceDays || off > anchorToleranceDays {
			continue
		}
		idx, ok := byDay[target.AddDate(0, 0, off)]
		if !ok {
			continue
		}
		price := s.Lows[idx]
		if anchor.UseHigh {
			price = s.Highs[idx]
		}
		return AnchorPoint{Anchor: anchor, Price: price, Date: s.Times[idx]}, true
	}
	return AnchorPoint{}, false
}

// AnchorRanges resolves consecutive anchor pairs; pairs with a missing side are skipped
func AnchorRanges(s *models.Series, anchors []models.SeasonalAnchor) []AnchorRange {
	sorted := make([]models.SeasonalAnchor, len(anchors))
	copy(sorted, anchors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var ranges []AnchorRange
	for i := 0; i+1 < len(sorted); i++ {
		from, ok := AnchorPrice(s, sorted[i])
		if !ok {
			continue
		}
		to, ok := AnchorPrice(s, sorted[i+1])
		if !ok {
			continue
		}
		ranges = append(ranges, AnchorRange{
			From: from,
			To:   to,
			High: math.Max(from.Price, to.Price),
			Low:  math.Min(from.Price, to.Price),
		})
	}
	return ranges
}

// AverageRange averages highs and lows across anchor ranges
func AverageRange(ranges []AnchorRange) (high, low float64, ok bool) {
	if len(ranges) == 0 {
		return 0, 0, false
	}
	for _, r := range ranges {
		high += r.High
		low += r.Low
	}
	n := float64(len(ranges))
	return high / n, low / n, true
}

// FanLines computes speed lines between two anchors
func FanLines(from, to AnchorPoint) []models.FanLine {
	days := models.DaysBetween(from.Date, to.Date)
	if days <= 0 {
		return nil
	}
	diff := to.Price - from.Price

	lines := make([]models.FanLine, 0, len(FanRatios))
	for _, r := range FanRatios {
		lines = append(lines, models.FanLine{
			Ratio:      r,
			Slope:      diff * r / float64(days),
			StartPrice: from.Price,
			StartDate:  from.Date,
		})
	}
	return lines
}

// TimeProjections projects target levels to future dates using Fibonacci time ratios
func TimeProjections(start, end, now time.Time, targets []FibLevel) []models.TimeProjection {
	span := models.DaysBetween(start, end)
	if span <= 0 {
		return nil
	}

	var out []models.TimeProjection
	for _, ratio := range TimeRatios {
		date := models.Day(end).AddDate(0, 0, int(float64(span)*ratio))
		if !date.After(models.Day(now)) {
			continue
		}
		for _, t := range targets {
			out = append(out, models.TimeProjection{
				Label:       fmt.Sprintf("%s_t%g", t.Key, ratio),
				TargetPrice: t.Price,
				TargetDate:  date,
				TimeRatio:   ratio,
			})
		}
	}
	return out
}
