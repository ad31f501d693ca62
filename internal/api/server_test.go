package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/selivandex/forecastr/internal/featured"
	"github.com/selivandex/forecastr/internal/health"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/models"
)

type fakeEngine struct {
	err       error
	lastDays  int
	lastMin   float64
	lastSyms  []string
	panicking bool
}

func (f *fakeEngine) GetRating(_ context.Context, symbol, category string) (*models.TickerRating, error) {
	if f.panicking {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.TickerRating{Symbol: symbol, Category: category, Scores: models.Scores{Total: 72}}, nil
}

func (f *fakeEngine) GetBatchRatings(_ context.Context, _ string, minScore float64) (*models.BatchResult, error) {
	f.lastMin = minScore
	return &models.BatchResult{Ratings: []*models.TickerRating{}, Warnings: []string{}, Errors: []string{"X: timeout"}}, f.err
}

func (f *fakeEngine) DetectTradingWindows(_ context.Context, _, _ string, daysAhead int) ([]models.TradingWindow, error) {
	f.lastDays = daysAhead
	return []models.TradingWindow{}, f.err
}

func (f *fakeEngine) DetectConvergenceForecastedSwings(_ context.Context, symbols []string, _ string) ([]*models.ConvergenceForecast, error) {
	f.lastSyms = symbols
	return []*models.ConvergenceForecast{}, f.err
}

func (f *fakeEngine) DetectPostReversalMomentum(_ context.Context, symbols []string, _ string) ([]*models.ReversalOpportunity, error) {
	f.lastSyms = symbols
	return []*models.ReversalOpportunity{}, f.err
}

func (f *fakeEngine) GetLevels(context.Context, string, string) (*levels.LevelSet, error) {
	return &levels.LevelSet{}, f.err
}

type fakeFeatured struct {
	refreshErr error
	forced     bool
}

func (f *fakeFeatured) ShouldRefresh(context.Context) (featured.Decision, error) {
	return featured.Decision{ShouldRefresh: true, Reason: featured.ReasonNoCache}, nil
}

func (f *fakeFeatured) Refresh(_ context.Context, force bool) (featured.Decision, error) {
	f.forced = force
	return featured.Decision{Reason: featured.ReasonCacheFresh}, f.refreshErr
}

func (f *fakeFeatured) Featured(_ context.Context, category string) ([]models.FeaturedTicker, error) {
	return []models.FeaturedTicker{{Symbol: "SPY", Category: category, Rank: 1}}, nil
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServer_Routes(t *testing.T) {
	eng := &fakeEngine{}
	feat := &fakeFeatured{}
	h := NewServer(eng, feat, health.NewProbes(), Options{Port: 0}).Handler()

	t.Run("rating", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/ratings/SPY?category=equities")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var r models.TickerRating
		if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if r.Symbol != "SPY" || r.Category != "equities" {
			t.Errorf("rating = %s/%s", r.Symbol, r.Category)
		}
	})

	t.Run("batch passes min score", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/ratings?category=equities&min_score=55.5")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if eng.lastMin != 55.5 {
			t.Errorf("min score = %v", eng.lastMin)
		}
		if !strings.Contains(rec.Body.String(), "X: timeout") {
			t.Errorf("partial errors missing: %s", rec.Body.String())
		}
	})

	t.Run("invalid min score", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/ratings?min_score=high")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("windows default days", func(t *testing.T) {
		do(t, h, http.MethodGet, "/api/windows/SPY?category=equities")
		if eng.lastDays != 30 {
			t.Errorf("days = %d, want 30", eng.lastDays)
		}
		do(t, h, http.MethodGet, "/api/windows/SPY?category=equities&days=45")
		if eng.lastDays != 45 {
			t.Errorf("days = %d, want 45", eng.lastDays)
		}
	})

	t.Run("convergence symbols", func(t *testing.T) {
		do(t, h, http.MethodGet, "/api/convergence?category=equities&symbols=SPY,%20QQQ,,")
		if len(eng.lastSyms) != 2 || eng.lastSyms[1] != "QQQ" {
			t.Errorf("symbols = %v", eng.lastSyms)
		}
		do(t, h, http.MethodGet, "/api/reversals?category=equities")
		if eng.lastSyms != nil {
			t.Errorf("symbols = %v, want nil for universe", eng.lastSyms)
		}
	})

	t.Run("featured", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/featured?category=crypto")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"category":"crypto"`) {
			t.Errorf("featured = %d %s", rec.Code, rec.Body.String())
		}
		rec = do(t, h, http.MethodGet, "/api/featured/status")
		if !strings.Contains(rec.Body.String(), featured.ReasonNoCache) {
			t.Errorf("status body = %s", rec.Body.String())
		}
	})

	t.Run("featured refresh", func(t *testing.T) {
		if rec := do(t, h, http.MethodGet, "/api/featured/refresh"); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET refresh status = %d, want 405", rec.Code)
		}
		if rec := do(t, h, http.MethodPost, "/api/featured/refresh?force=true"); rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
		if !feat.forced {
			t.Error("force flag not passed")
		}
		feat.refreshErr = fmt.Errorf("store: %w", featured.ErrLocked)
		if rec := do(t, h, http.MethodPost, "/api/featured/refresh"); rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("health endpoints mounted", func(t *testing.T) {
		if rec := do(t, h, http.MethodGet, "/health"); rec.Code != http.StatusOK {
			t.Errorf("health = %d", rec.Code)
		}
	})
}

func TestServer_Errors(t *testing.T) {
	eng := &fakeEngine{err: fmt.Errorf("unknown category: %w", models.ErrConfiguration)}
	h := NewServer(eng, &fakeFeatured{}, nil, Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/api/ratings/SPY?category=bonds")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body["error"], "unknown category") {
		t.Errorf("error body = %v", body)
	}

	eng.err = nil
	eng.panicking = true
	if rec := do(t, h, http.MethodGet, "/api/ratings/SPY"); rec.Code != http.StatusInternalServerError {
		t.Errorf("panic status = %d, want 500", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", models.ErrConfiguration, http.StatusBadRequest},
		{"locked", featured.ErrLocked, http.StatusConflict},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"upstream", fmt.Errorf("load: %w: %w", models.ErrUpstream, errors.New("reset")), http.StatusBadGateway},
		{"missing", models.ErrMissingData, http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
