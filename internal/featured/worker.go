package featured

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/models"
)

// Notifier publishes a refreshed featured list
type Notifier interface {
	NotifyFeatured(ctx context.Context, period string, featured map[string][]models.FeaturedTicker) error
}

// RefreshWorker periodically checks staleness and refreshes the featured cache
type RefreshWorker struct {
	manager  *Manager
	notifier Notifier
}

// NewRefreshWorker creates featured refresh worker. notifier may be nil.
func NewRefreshWorker(manager *Manager, notifier Notifier) *RefreshWorker {
	return &RefreshWorker{manager: manager, notifier: notifier}
}

// Name returns worker name
func (w *RefreshWorker) Name() string {
	return "featured_refresh"
}

// Run executes one check-and-refresh iteration
func (w *RefreshWorker) Run(ctx context.Context) error {
	runID := uuid.New().String()
	log := w.manager.log.With(zap.String("run_id", runID))

	d, err := w.manager.Refresh(ctx, false)
	if err != nil {
		return err
	}
	log.Info("featured refresh check",
		zap.Bool("refreshed", d.ShouldRefresh),
		zap.String("reason", d.Reason),
		zap.String("period", d.Period.Key()),
	)
	if !d.ShouldRefresh || w.notifier == nil {
		return nil
	}

	featured := make(map[string][]models.FeaturedTicker)
	for _, category := range w.manager.rater.Categories() {
		rows, err := w.manager.Featured(ctx, category)
		if err != nil {
			log.Warn("failed to load featured for digest", zap.String("category", category), zap.Error(err))
			continue
		}
		featured[category] = rows
	}
	if err := w.notifier.NotifyFeatured(ctx, d.Period.Key(), featured); err != nil {
		log.Warn("featured digest failed", zap.Error(err))
	}
	return nil
}
