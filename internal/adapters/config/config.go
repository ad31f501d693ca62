package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Database   DatabaseConfig   `envconfig:"DB"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	Engine     EngineConfig     `envconfig:"ENGINE"`
	Featured   FeaturedConfig   `envconfig:"FEATURED"`
	Scheduler  SchedulerConfig  `envconfig:"SCHEDULER"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	HTTP       HTTPConfig       `envconfig:"HTTP"`
	Logging    LoggingConfig    `envconfig:"LOG"`
}

// DatabaseConfig represents PostgreSQL connection parameters
type DatabaseConfig struct {
	Host           string `envconfig:"HOST" default:"localhost"`
	Port           int    `envconfig:"PORT" default:"5432"`
	Name           string `envconfig:"NAME" default:"forecastr"`
	User           string `envconfig:"USER" default:"forecastr"`
	Password       string `envconfig:"PASSWORD"`
	SSLMode        string `envconfig:"SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`
	MaxOpenConns   int    `envconfig:"MAX_OPEN_CONNS" default:"25"`
}

// ClickHouseConfig represents the bar history store. Disabled means Postgres fallback.
type ClickHouseConfig struct {
	Enabled       bool          `envconfig:"ENABLED" default:"false"`
	Host          string        `envconfig:"HOST" default:"localhost"`
	Port          int           `envconfig:"PORT" default:"9000"`
	Database      string        `envconfig:"DATABASE" default:"forecastr"`
	User          string        `envconfig:"USER" default:"default"`
	Password      string        `envconfig:"PASSWORD"`
	BatchSize     int           `envconfig:"BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"FLUSH_INTERVAL" default:"10s"`
	SchemaPath    string        `envconfig:"SCHEMA_PATH" default:"migrations/clickhouse"`
}

// RedisConfig represents the hot cache and lock backend
type RedisConfig struct {
	Enabled  bool          `envconfig:"ENABLED" default:"false"`
	Host     string        `envconfig:"HOST" default:"localhost"`
	Port     int           `envconfig:"PORT" default:"6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"840h"`
}

// EngineConfig represents scoring pipeline parameters
type EngineConfig struct {
	Categories         []string `envconfig:"CATEGORIES" default:"equities,crypto,forex,commodities,rates-macro,stress"`
	LookbackDays       int      `envconfig:"LOOKBACK_DAYS" default:"400"`
	ConvergenceHorizon int      `envconfig:"CONVERGENCE_HORIZON" default:"30"`
	HorizonMin         int      `envconfig:"HORIZON_MIN" default:"7"`
	HorizonMax         int      `envconfig:"HORIZON_MAX" default:"180"`
	WorkerLimit        int      `envconfig:"WORKER_LIMIT" default:"8"`
	RateLimit          float64  `envconfig:"RATE_LIMIT" default:"20"`
	WindowLimit        int      `envconfig:"WINDOW_LIMIT" default:"5"`
	WeightsFile        string   `envconfig:"WEIGHTS_FILE"`
}

// FeaturedConfig represents featured cache parameters
type FeaturedConfig struct {
	TopN          int           `envconfig:"TOP_N" default:"10"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"840h"`
	CheckInterval time.Duration `envconfig:"CHECK_INTERVAL" default:"1h"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"2m"`
}

// SchedulerConfig represents the window digest job
type SchedulerConfig struct {
	Enabled    bool     `envconfig:"ENABLED" default:"false"`
	DigestSpec string   `envconfig:"DIGEST_SPEC" default:"0 7 * * *"`
	Symbols    []string `envconfig:"SYMBOLS" default:"SPY,BTC-USD"`
	Category   string   `envconfig:"CATEGORY" default:"equities"`
	DaysAhead  int      `envconfig:"DAYS_AHEAD" default:"30"`
}

// TelegramConfig represents digest notifications
type TelegramConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"false"`
	BotToken string `envconfig:"BOT_TOKEN"`
	ChatID   int64  `envconfig:"CHAT_ID"`
}

// HTTPConfig represents the API server
type HTTPConfig struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"45s"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LEVEL" default:"info"`
	File  string `envconfig:"FILE"`
}

// Load reads an optional env file, then the environment
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	e := c.Engine
	if len(e.Categories) == 0 {
		return fmt.Errorf("at least one category must be configured")
	}
	if e.HorizonMin < 1 || e.HorizonMax < e.HorizonMin {
		return fmt.Errorf("horizon bounds must satisfy 1 <= min <= max (got %d..%d)", e.HorizonMin, e.HorizonMax)
	}
	if e.ConvergenceHorizon < e.HorizonMin || e.ConvergenceHorizon > e.HorizonMax {
		return fmt.Errorf("convergence horizon %d outside %d..%d", e.ConvergenceHorizon, e.HorizonMin, e.HorizonMax)
	}
	if e.LookbackDays < 30 {
		return fmt.Errorf("lookback_days must be at least 30")
	}
	if e.WorkerLimit < 1 || e.WorkerLimit > 64 {
		return fmt.Errorf("worker_limit must be between 1 and 64")
	}
	if e.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if e.WindowLimit < 1 {
		return fmt.Errorf("window_limit must be at least 1")
	}

	if c.Featured.TopN < 1 {
		return fmt.Errorf("featured top_n must be at least 1")
	}
	if c.Featured.CacheTTL <= 0 || c.Featured.CheckInterval <= 0 {
		return fmt.Errorf("featured cache_ttl and check_interval must be positive")
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram bot token and chat_id are required when telegram is enabled")
	}
	if c.Scheduler.Enabled && c.Scheduler.DigestSpec == "" {
		return fmt.Errorf("scheduler digest_spec is required when scheduler is enabled")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetDSN returns ClickHouse connection string
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// Addr returns Redis host:port
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
