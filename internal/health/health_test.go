package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbes(t *testing.T) {
	p := NewProbes()
	mux := http.NewServeMux()
	p.Register(mux)

	failing := false
	p.Add("postgres", CheckerFunc(func(context.Context) error {
		if failing {
			return errors.New("connection refused")
		}
		return nil
	}))

	get := func(path string) (int, Status) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		var s Status
		if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		return rec.Code, s
	}

	if code, _ := get("/healthz"); code != http.StatusOK {
		t.Errorf("liveness = %d", code)
	}
	if code, s := get("/ready"); code != http.StatusServiceUnavailable || s.Ready {
		t.Errorf("not ready probe = %d %+v", code, s)
	}

	p.SetReady(true)
	if code, s := get("/readyz"); code != http.StatusOK || s.Checks["postgres"] != "healthy" {
		t.Errorf("ready probe = %d %+v", code, s)
	}

	failing = true
	code, s := get("/ready")
	if code != http.StatusServiceUnavailable || s.Status != "unavailable" {
		t.Errorf("failing dependency = %d %+v", code, s)
	}
	if s.Checks["postgres"] != "unhealthy: connection refused" {
		t.Errorf("check = %q", s.Checks["postgres"])
	}

	if _, s := get("/health?verbose=true"); len(s.Checks) != 1 {
		t.Errorf("verbose checks = %v", s.Checks)
	}
}
