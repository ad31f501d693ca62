package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
)

func newMigrator(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies all pending migrations, forcing a dirty version first
func (db *DB) RunMigrations(migrationsPath string) error {
	logger.Info("running database migrations", zap.String("path", migrationsPath))

	m, err := newMigrator(db.conn.DB, migrationsPath)
	if err != nil {
		return err
	}

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		logger.Warn("database is in dirty state, forcing version", zap.Uint("version", current))
		if err := m.Force(int(current)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no new migrations to apply", zap.Uint("version", current))
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	next, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get new migration version: %w", err)
	}
	logger.Info("migrations applied",
		zap.Uint("old_version", current),
		zap.Uint("new_version", next),
	)
	return nil
}

// RollbackMigration rolls back the last applied migration
func (db *DB) RollbackMigration(migrationsPath string) error {
	m, err := newMigrator(db.conn.DB, migrationsPath)
	if err != nil {
		return err
	}

	current, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	logger.Info("migration rolled back", zap.Uint("from_version", current))
	return nil
}

// MigrationVersion returns current migration version and dirty flag
func (db *DB) MigrationVersion(migrationsPath string) (uint, bool, error) {
	m, err := newMigrator(db.conn.DB, migrationsPath)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// ApplySchema executes every .sql file in dir in name order, statement by statement.
// ClickHouse DDL uses IF NOT EXISTS so reapplying is a no-op.
func (db *DB) ApplySchema(ctx context.Context, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list schema files: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply %s: %w", filepath.Base(f), err)
			}
		}
		logger.Info("schema applied", zap.String("driver", db.name), zap.String("file", filepath.Base(f)))
	}
	return nil
}
