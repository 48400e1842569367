package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-orders/internal/app"
	"github.com/odyssey-erp/odyssey-orders/internal/catalog"
	"github.com/odyssey-erp/odyssey-orders/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-orders/internal/platform/db"
	"github.com/odyssey-erp/odyssey-orders/internal/shared"
	"github.com/odyssey-erp/odyssey-orders/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogCache := cache.NewJSONCache(redisClient, "catalog", cfg.CatalogCacheTTL)
	catalogService := catalog.NewService(catalog.NewRepository(pool), catalogCache)
	idempotency := shared.NewIdempotencyStore(pool)

	confirmedJob := jobs.NewOrderConfirmedJob(jobs.LogNotifier{Logger: logger}, logger, nil)
	refreshJob := jobs.NewCatalogRefreshJob(catalogService, logger, nil)

	var cron []jobs.CronRegistration
	if cfg.CatalogRefreshCron != "" {
		refreshTask, err := jobs.NewCatalogCacheRefreshTask("scheduled")
		if err != nil {
			logger.Error("build catalog refresh task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.CatalogRefreshCron,
			Task:    refreshTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOrderConfirmed, Handler: confirmedJob.Handle},
			{Type: jobs.TaskCatalogCacheRefresh, Handler: refreshJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	go pruneIdempotencyKeys(ctx, idempotency, logger)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// pruneIdempotencyKeys drops confirmation keys older than a week once a day.
func pruneIdempotencyKeys(ctx context.Context, store *shared.IdempotencyStore, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(ctx, 7*24*time.Hour); err != nil {
				logger.Warn("prune idempotency keys", slog.Any("error", err))
			}
		}
	}
}
