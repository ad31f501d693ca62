package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/internal/engine"
	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// RatingCache is a read-through hot cache in front of the persistent rating cache.
// Keys embed the ingress period, so a period rollover misses naturally.
type RatingCache struct {
	client *Client
	next   engine.RatingCache
}

// NewRatingCache wraps next (may be nil) with Redis
func (c *Client) NewRatingCache(next engine.RatingCache) *RatingCache {
	return &RatingCache{client: c, next: next}
}

func ratingKey(symbol, period string) string {
	return fmt.Sprintf("rating:%s:%s", period, symbol)
}

// GetRating checks Redis first, then the wrapped cache, back-filling Redis on a hit
func (rc *RatingCache) GetRating(ctx context.Context, symbol, period string) (*models.TickerRating, bool, error) {
	raw, err := rc.client.cache.Get(ctx, ratingKey(symbol, period)).Bytes()
	switch {
	case err == nil:
		var rating models.TickerRating
		if err := json.Unmarshal(raw, &rating); err == nil {
			return &rating, true, nil
		}
	case !errors.Is(err, redis.Nil):
		logger.Warn("redis rating read failed", zap.String("symbol", symbol), zap.Error(err))
	}

	if rc.next == nil {
		return nil, false, nil
	}
	rating, ok, err := rc.next.GetRating(ctx, symbol, period)
	if err != nil || !ok {
		return rating, ok, err
	}
	rc.set(ctx, rating)
	return rating, true, nil
}

// PutRating writes through to the wrapped cache, then Redis
func (rc *RatingCache) PutRating(ctx context.Context, rating *models.TickerRating) error {
	if rc.next != nil {
		if err := rc.next.PutRating(ctx, rating); err != nil {
			return err
		}
	}
	rc.set(ctx, rating)
	return nil
}

func (rc *RatingCache) set(ctx context.Context, rating *models.TickerRating) {
	data, err := json.Marshal(rating)
	if err != nil {
		return
	}
	if err := rc.client.cache.Set(ctx, ratingKey(rating.Symbol, rating.IngressPeriod), data, rc.client.cacheTTL).Err(); err != nil {
		logger.Warn("redis rating write failed", zap.String("symbol", rating.Symbol), zap.Error(err))
	}
}
