package testdb

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/selivandex/forecastr/internal/adapters/config"
	"github.com/selivandex/forecastr/internal/adapters/database"
)

// tables are truncated after every test
var tables = []string{
	"financial_data",
	"astro_events",
	"ticker_universe",
	"ticker_ratings_cache",
	"featured_tickers",
	"fibonacci_levels",
}

// TestDB is a migrated PostgreSQL database wiped after each test
type TestDB struct {
	*database.DB
}

// Setup connects to the database named by TEST_DB_* variables and applies
// migrations. Tests are skipped when TEST_DB_HOST is unset or in short mode.
func Setup(t *testing.T) *TestDB {
	t.Helper()

	host := os.Getenv("TEST_DB_HOST")
	if host == "" || testing.Short() {
		t.Skip("TEST_DB_HOST not set, skipping PostgreSQL integration test")
	}

	cfg := &config.DatabaseConfig{
		Host:         host,
		Port:         envInt("TEST_DB_PORT", 5432),
		Name:         envOr("TEST_DB_NAME", "forecastr_test"),
		User:         envOr("TEST_DB_USER", "forecastr"),
		Password:     envOr("TEST_DB_PASSWORD", "forecastr"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
	}

	db, err := database.New(cfg)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.RunMigrations(migrationsPath()); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	tdb := &TestDB{DB: db}
	t.Cleanup(func() { tdb.Teardown(t) })
	return tdb
}

// Teardown truncates every table and closes the connection
func (tdb *TestDB) Teardown(t *testing.T) {
	t.Helper()

	for _, table := range tables {
		if _, err := tdb.DB.DB().ExecContext(context.Background(), "TRUNCATE "+table); err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
	if err := tdb.Close(); err != nil {
		t.Logf("warning: failed to close database: %v", err)
	}
}

// Exec executes SQL and fails the test on error
func (tdb *TestDB) Exec(t *testing.T, query string, args ...interface{}) {
	t.Helper()
	if _, err := tdb.DB.DB().Exec(query, args...); err != nil {
		t.Fatalf("failed to execute query: %v\nQuery: %s", err, query)
	}
}

// Conn returns the sqlx handle
func (tdb *TestDB) Conn() *sqlx.DB {
	return tdb.DB.DB()
}

// SeedBars inserts consecutive daily OHLC rows into financial_data starting 2025-01-01
func (tdb *TestDB) SeedBars(t *testing.T, symbol string, rows ...[4]float64) {
	t.Helper()
	for i, r := range rows {
		tdb.Exec(t, `
			INSERT INTO financial_data (symbol, date, open, high, low, close, volume)
			VALUES ($1, DATE '2025-01-01' + $2::int, $3, $4, $5, $6, 1000)
		`, symbol, i, r[0], r[1], r[2], r[3])
	}
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
