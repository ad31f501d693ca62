package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// FlushFunc persists one batch of ratings
type FlushFunc func(ctx context.Context, ratings []*models.TickerRating) error

// RatingWriter buffers rating snapshots and flushes them by size or interval
type RatingWriter struct {
	flushFn  FlushFunc
	maxBatch int

	mu     sync.Mutex
	buffer []*models.TickerRating

	ticker *time.Ticker
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRatingWriter creates a writer flushing to repo
func NewRatingWriter(repo *Repository, maxBatch int, maxWait time.Duration) *RatingWriter {
	return NewRatingWriterFunc(repo.SaveRatings, maxBatch, maxWait)
}

// NewRatingWriterFunc creates a writer with a custom flush function
func NewRatingWriterFunc(flushFn FlushFunc, maxBatch int, maxWait time.Duration) *RatingWriter {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &RatingWriter{
		flushFn:  flushFn,
		maxBatch: maxBatch,
		buffer:   make([]*models.TickerRating, 0, maxBatch),
		ticker:   time.NewTicker(maxWait),
		ctx:      ctx,
		cancel:   cancel,
	}

	w.wg.Add(1)
	go w.autoFlush()
	return w
}

// Record buffers a rating; a full buffer flushes synchronously
func (w *RatingWriter) Record(rating *models.TickerRating) {
	w.mu.Lock()
	w.buffer = append(w.buffer, rating)
	full := len(w.buffer) >= w.maxBatch
	w.mu.Unlock()

	if full {
		w.flush()
	}
}

func (w *RatingWriter) autoFlush() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ticker.C:
			w.flush()
		case <-w.ctx.Done():
			w.flush()
			return
		}
	}
}

func (w *RatingWriter) flush() {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.buffer
	w.buffer = make([]*models.TickerRating, 0, w.maxBatch)
	w.mu.Unlock()

	// The writer context is already cancelled during the final flush
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.flushFn(ctx, batch); err != nil {
		logger.Error("failed to flush rating snapshots",
			zap.Int("records", len(batch)),
			zap.Error(err),
		)
		return
	}
	logger.Debug("flushed rating snapshots", zap.Int("records", len(batch)))
}

// Close stops the writer after flushing remaining ratings
func (w *RatingWriter) Close() error {
	w.ticker.Stop()
	w.cancel()
	w.wg.Wait()
	return nil
}
