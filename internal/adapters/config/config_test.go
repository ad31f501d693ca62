package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Engine.Categories) != 6 || cfg.Engine.Categories[4] != "rates-macro" {
		t.Errorf("categories = %v", cfg.Engine.Categories)
	}
	if cfg.Engine.HorizonMin != 7 || cfg.Engine.HorizonMax != 180 {
		t.Errorf("horizon = %d..%d", cfg.Engine.HorizonMin, cfg.Engine.HorizonMax)
	}
	if cfg.Featured.CacheTTL != 840*time.Hour || cfg.Featured.LockTTL != 2*time.Minute {
		t.Errorf("featured = %+v", cfg.Featured)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Errorf("redis addr = %s", cfg.Redis.Addr())
	}
	if !strings.Contains(cfg.Database.GetDSN(), "dbname=forecastr") {
		t.Errorf("dsn = %s", cfg.Database.GetDSN())
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ENGINE_WINDOW_LIMIT=3\nSCHEDULER_SYMBOLS=SPY,QQQ,GLD\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("ENGINE_WINDOW_LIMIT")
		os.Unsetenv("SCHEDULER_SYMBOLS")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.WindowLimit != 3 {
		t.Errorf("window limit = %d, want 3", cfg.Engine.WindowLimit)
	}
	if len(cfg.Scheduler.Symbols) != 3 {
		t.Errorf("symbols = %v", cfg.Scheduler.Symbols)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"horizon outside bounds", map[string]string{"ENGINE_CONVERGENCE_HORIZON": "200"}},
		{"inverted bounds", map[string]string{"ENGINE_HORIZON_MIN": "90", "ENGINE_HORIZON_MAX": "30"}},
		{"short lookback", map[string]string{"ENGINE_LOOKBACK_DAYS": "10"}},
		{"telegram without token", map[string]string{"TELEGRAM_ENABLED": "true"}},
		{"zero top n", map[string]string{"FEATURED_TOP_N": "0"}},
		{"bad duration", map[string]string{"FEATURED_CACHE_TTL": "a month"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("expected error")
			}
		})
	}
}
