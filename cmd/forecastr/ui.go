package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/selivandex/forecastr/internal/featured"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

func recommendationStyle(r models.Recommendation) lipgloss.Style {
	switch r {
	case models.StrongBuy, models.Buy:
		return successStyle
	case models.StrongSell, models.Sell:
		return errorStyle
	default:
		return warnStyle
	}
}

func windowStyle(t models.WindowType) lipgloss.Style {
	switch t {
	case models.WindowHighProbability:
		return successStyle
	case models.WindowModerate:
		return warnStyle
	default:
		return errorStyle
	}
}

func price(p float64) string {
	return fmt.Sprintf("%.4f", p)
}

func dateRange(r models.TradingWindow) string {
	if r.DaysInWindow <= 1 {
		return r.StartDate.Format("2006-01-02")
	}
	return r.StartDate.Format("2006-01-02") + " → " + r.EndDate.Format("2006-01-02")
}

func renderRating(r *models.TickerRating) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", r.Symbol, r.Category)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s  total %.1f  price %s  period %s\n",
		recommendationStyle(r.Recommendation).Render(string(r.Recommendation)),
		r.Scores.Total, price(r.CurrentPrice), r.IngressPeriod))

	t := newTable("component", "score").
		Row("confluence", fmt.Sprintf("%.1f", r.Scores.Confluence)).
		Row("proximity", fmt.Sprintf("%.1f", r.Scores.Proximity)).
		Row("momentum", fmt.Sprintf("%.1f", r.Scores.Momentum)).
		Row("seasonal", fmt.Sprintf("%.1f", r.Scores.Seasonal)).
		Row("aspect", fmt.Sprintf("%.1f", r.Scores.AspectAlignment)).
		Row("volatility", fmt.Sprintf("%.1f", r.Scores.Volatility)).
		Row("trend", fmt.Sprintf("%.1f", r.Scores.Trend)).
		Row("volume", fmt.Sprintf("%.1f", r.Scores.Volume))
	b.WriteString(t.Render())
	b.WriteString("\n")

	if r.NextKeyLevel.Price > 0 {
		b.WriteString(fmt.Sprintf("next %s %s (%s, %.2f%% away)\n",
			r.NextKeyLevel.Kind, price(r.NextKeyLevel.Price), r.NextKeyLevel.Origin, r.NextKeyLevel.DistancePercent))
	}
	for _, reason := range r.Reasons {
		b.WriteString(mutedStyle.Render("• "+reason) + "\n")
	}
	for _, w := range r.Warnings {
		b.WriteString(warnStyle.Render("! "+w) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBatch(category string, result *models.BatchResult) string {
	t := newTable("#", "symbol", "total", "recommendation", "price")
	for i, r := range result.Ratings {
		t.Row(fmt.Sprint(i+1), r.Symbol, fmt.Sprintf("%.1f", r.Scores.Total), string(r.Recommendation), price(r.CurrentPrice))
	}

	out := titleStyle.Render("ratings: "+category) + "\n" + t.Render()
	for _, e := range result.Errors {
		out += "\n" + errorStyle.Render("✗ "+e)
	}
	for _, w := range result.Warnings {
		out += "\n" + warnStyle.Render("! "+w)
	}
	return out
}

func renderLevels(symbol string, set *levels.LevelSet) string {
	if set.Empty() {
		return warnStyle.Render(symbol + ": no levels")
	}
	t := newTable("kind", "price", "origin", "label", "confidence")
	for _, l := range set.Resistance {
		t.Row("resistance", price(l.Price), string(l.Origin), l.Label, fmt.Sprintf("%.2f", l.Confidence))
	}
	for _, l := range set.Support {
		t.Row("support", price(l.Price), string(l.Origin), l.Label, fmt.Sprintf("%.2f", l.Confidence))
	}
	return titleStyle.Render(fmt.Sprintf("%s levels @ %s", symbol, price(set.CurrentPrice))) + "\n" + t.Render()
}

func renderWindows(symbol string, windows []models.TradingWindow) string {
	if len(windows) == 0 {
		return mutedStyle.Render(symbol + ": no trading windows")
	}
	t := newTable("dates", "type", "technical", "astro", "combined")
	for _, w := range windows {
		t.Row(dateRange(w), windowStyle(w.Type).Render(string(w.Type)),
			fmt.Sprintf("%.1f", w.TechnicalConfluence),
			fmt.Sprintf("%.1f", w.AstrologicalAlignment),
			fmt.Sprintf("%.1f", w.CombinedScore))
	}
	return titleStyle.Render(symbol+" trading windows") + "\n" + t.Render()
}

func renderConvergence(forecasts []*models.ConvergenceForecast) string {
	if len(forecasts) == 0 {
		return mutedStyle.Render("no converging swings")
	}
	t := newTable("#", "symbol", "type", "price", "date", "methods", "confidence")
	for _, f := range forecasts {
		s := f.ForecastedSwing
		t.Row(fmt.Sprint(f.Rank), f.Symbol, string(s.Type), price(s.Price), s.Date.Format("2006-01-02"),
			strings.Join(s.ConvergingMethods, ","), fmt.Sprintf("%.2f", s.FinalConfidence))
	}
	return titleStyle.Render("convergence forecasts") + "\n" + t.Render()
}

func renderReversals(opps []*models.ReversalOpportunity) string {
	if len(opps) == 0 {
		return mutedStyle.Render("no post-reversal momentum")
	}
	t := newTable("symbol", "direction", "reversal", "move %", "days", "confidence")
	for _, o := range opps {
		t.Row(o.Symbol, o.Direction, o.ReversalDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", o.MovePercent), fmt.Sprint(o.DaysSinceReversal), fmt.Sprintf("%.2f", o.Confidence))
	}
	return titleStyle.Render("post-reversal momentum") + "\n" + t.Render()
}

func renderFeatured(category string, rows []models.FeaturedTicker) string {
	if len(rows) == 0 {
		return mutedStyle.Render(category + ": featured cache empty")
	}
	t := newTable("rank", "symbol", "score", "period")
	for _, r := range rows {
		t.Row(fmt.Sprint(r.Rank), r.Symbol, fmt.Sprintf("%.1f", r.TotalScore), r.IngressPeriod)
	}
	return titleStyle.Render("featured: "+category) + "\n" + t.Render()
}

func renderDecision(d featured.Decision) string {
	status := successStyle.Render("fresh")
	if d.ShouldRefresh {
		status = warnStyle.Render("stale")
	}
	out := fmt.Sprintf("%s  reason %s  period %s (%d days remaining)", status, d.Reason, d.Period.Key(), d.Period.DaysRemaining)
	if d.CachedPeriod != "" {
		out += "\n" + mutedStyle.Render(fmt.Sprintf("cached %s at %s", d.CachedPeriod, d.CachedAt.Format("2006-01-02 15:04")))
	}
	return out
}

func renderUniverse(category string, symbols []string) string {
	if len(symbols) == 0 {
		return mutedStyle.Render(category + ": empty universe")
	}
	return titleStyle.Render(category) + "\n" + strings.Join(symbols, "  ")
}
