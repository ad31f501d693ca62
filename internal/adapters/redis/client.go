package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/internal/adapters/config"
	"github.com/selivandex/forecastr/pkg/logger"
)

// Client bundles the RedLock manager and a standard Redis client for caching
type Client struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	cacheTTL    time.Duration
}

// New creates Redis client with RedLock support and caching
func New(cfg *config.RedisConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addrs := []string{"tcp://" + cfg.Addr()}
	lockManager, err := redlock.NewRedLock(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	cache := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	if err := cache.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("address", cfg.Addr()),
		zap.Int("db", cfg.DB),
	)

	return &Client{lockManager: lockManager, cache: cache, cacheTTL: cfg.CacheTTL}, nil
}

// Close closes the cache connection; redlock connections close with the process
func (c *Client) Close() error {
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			return fmt.Errorf("failed to close redis cache: %w", err)
		}
	}
	return nil
}

// Health pings the cache
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.cache.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
