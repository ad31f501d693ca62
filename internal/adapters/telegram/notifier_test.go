package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/selivandex/forecastr/pkg/models"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestNewNotifier_RequiresToken(t *testing.T) {
	if _, err := NewNotifier("", 1); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestNotifier_NotifyFeatured(t *testing.T) {
	api := &fakeSender{}
	n, err := newNotifier(api, 42)
	if err != nil {
		t.Fatalf("newNotifier: %v", err)
	}

	err = n.NotifyFeatured(context.Background(), "2025-01-20_Aquarius", map[string][]models.FeaturedTicker{
		"equities": {
			{Symbol: "SPY", Rank: 1, TotalScore: 81.3, Rating: &models.TickerRating{Recommendation: models.StrongBuy}},
			{Symbol: "QQQ", Rank: 2, TotalScore: 74},
		},
		"crypto": {},
	})
	if err != nil {
		t.Fatalf("NotifyFeatured: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(api.sent))
	}

	msg := api.sent[0]
	if msg.ChatID != 42 || msg.ParseMode != "Markdown" {
		t.Errorf("chat = %d mode = %s", msg.ChatID, msg.ParseMode)
	}
	for _, want := range []string{"2025-01-20_Aquarius", "1. *SPY* 81.3", "2. *QQQ* 74.0", "no tickers"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("message missing %q:\n%s", want, msg.Text)
		}
	}
	if strings.Index(msg.Text, "_crypto_") > strings.Index(msg.Text, "_equities_") {
		t.Error("categories not sorted")
	}
}

func TestNotifier_NotifyWindows(t *testing.T) {
	api := &fakeSender{}
	n, err := newNotifier(api, 7)
	if err != nil {
		t.Fatalf("newNotifier: %v", err)
	}

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	err = n.NotifyWindows(context.Background(), 30, []SymbolWindows{{
		Symbol: "SPY",
		Windows: []models.TradingWindow{{
			StartDate:     start,
			EndDate:       start.AddDate(0, 0, 4),
			Type:          models.WindowHighProbability,
			CombinedScore: 83.6,
		}},
	}})
	if err != nil {
		t.Fatalf("NotifyWindows: %v", err)
	}
	text := api.sent[0].Text
	for _, want := range []string{"30 days ahead", "*SPY*", "Mar 03 - Mar 07", "`high_probability` 84"} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q:\n%s", want, text)
		}
	}
}

func TestNotifier_SendError(t *testing.T) {
	api := &fakeSender{err: errors.New("chat not found")}
	n, err := newNotifier(api, 7)
	if err != nil {
		t.Fatalf("newNotifier: %v", err)
	}
	if err := n.NotifyWindows(context.Background(), 30, nil); err == nil {
		t.Error("expected send error")
	}
}
