package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/selivandex/forecastr/internal/adapters/telegram"
	"github.com/selivandex/forecastr/pkg/models"
)

type fakeDetector struct {
	windows map[string][]models.TradingWindow
	fail    map[string]error
}

func (f *fakeDetector) DetectTradingWindows(_ context.Context, symbol, _ string, _ int) ([]models.TradingWindow, error) {
	if err, ok := f.fail[symbol]; ok {
		return nil, err
	}
	return f.windows[symbol], nil
}

type fakeNotifier struct {
	calls   int
	days    int
	windows []telegram.SymbolWindows
}

func (f *fakeNotifier) NotifyWindows(_ context.Context, daysAhead int, windows []telegram.SymbolWindows) error {
	f.calls++
	f.days = daysAhead
	f.windows = windows
	return nil
}

func TestNew_InvalidSpec(t *testing.T) {
	if _, err := New(context.Background(), &fakeDetector{}, &fakeNotifier{}, Config{Spec: "every tuesday"}); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

func TestScheduler_RunDigest(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	t.Run("failed and empty symbols are skipped", func(t *testing.T) {
		det := &fakeDetector{
			windows: map[string][]models.TradingWindow{
				"SPY": {{Symbol: "SPY", StartDate: day, EndDate: day, Type: models.WindowModerate}},
				"QQQ": {},
			},
			fail: map[string]error{"BTC": errors.New("timeout")},
		}
		notifier := &fakeNotifier{}
		s, err := New(ctx, det, notifier, Config{Spec: "0 8 * * 1", Symbols: []string{"BTC", "SPY", "QQQ"}, Category: "equities", DaysAhead: 14})
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if err := s.RunDigest(ctx); err != nil {
			t.Fatalf("RunDigest: %v", err)
		}
		if notifier.calls != 1 || notifier.days != 14 {
			t.Errorf("calls = %d days = %d", notifier.calls, notifier.days)
		}
		if len(notifier.windows) != 1 || notifier.windows[0].Symbol != "SPY" {
			t.Errorf("windows = %+v", notifier.windows)
		}
	})

	t.Run("nothing to send", func(t *testing.T) {
		notifier := &fakeNotifier{}
		s, err := New(ctx, &fakeDetector{}, notifier, Config{Spec: "@daily", Symbols: []string{"SPY"}})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.RunDigest(ctx); err != nil {
			t.Fatalf("RunDigest: %v", err)
		}
		if notifier.calls != 0 {
			t.Errorf("calls = %d, want 0", notifier.calls)
		}
	})
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(context.Background(), &fakeDetector{}, &fakeNotifier{}, Config{Spec: "@hourly"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	s.Stop()
}
