package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-orders/internal/jobs"
)

// CacheInvalidator drops cached catalog data and returns the new cache version.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// CatalogRefreshJob bumps the catalog cache version so prices and packagings are reloaded.
type CatalogRefreshJob struct {
	Cache   CacheInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogRefreshJob wires dependencies for the refresh handler.
func NewCatalogRefreshJob(cache CacheInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogRefreshJob {
	return &CatalogRefreshJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCatalogCacheRefresh.
func (j *CatalogRefreshJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("catalog refresh: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskCatalogCacheRefresh)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	version, err := j.Cache.Invalidate(ctx)
	if err != nil {
		logger.Error("catalog cache refresh", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("catalog cache refreshed", slog.Int64("version", version))
	return tracker.End(nil)
}
