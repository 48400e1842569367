package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-orders/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-orders/internal/app"
	"github.com/odyssey-erp/odyssey-orders/internal/catalog"
	"github.com/odyssey-erp/odyssey-orders/internal/fiscal"
	"github.com/odyssey-erp/odyssey-orders/internal/observability"
	"github.com/odyssey-erp/odyssey-orders/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-orders/internal/platform/db"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/customers"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/drafts"
	"github.com/odyssey-erp/odyssey-orders/internal/sales/orders"
	"github.com/odyssey-erp/odyssey-orders/internal/shared"
	"github.com/odyssey-erp/odyssey-orders/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, cfg, os.Args[2:]))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	salesMetrics := metrics.Sales()

	catalogCache := cache.NewJSONCache(redisClient, "catalog", cfg.CatalogCacheTTL)
	catalogService := catalog.NewService(catalog.NewRepository(dbpool), catalogCache)

	fiscalClient := fiscal.NewClient(fiscal.Config{
		BaseURL:      cfg.FiscalURL,
		Timeout:      cfg.FiscalTimeout,
		OpenTimeout:  cfg.FiscalOpenTimeout,
		FailureRatio: cfg.FiscalFailureRatio,
	}, &http.Client{}, logger, salesMetrics)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	orderService := orders.NewService(orders.ServiceDeps{
		Repo:        orders.NewRepository(dbpool),
		Customers:   customers.NewRepository(dbpool),
		Catalog:     catalogService,
		Drafts:      drafts.NewStore(redisClient, cfg.DraftTTL),
		Fiscal:      fiscalClient,
		Idempotency: shared.NewIdempotencyStore(dbpool),
		Jobs:        jobClient,
		Audit:       shared.NewAuditLogger(dbpool),
		Metrics:     salesMetrics,
		Logger:      logger,
		LockTTL:     cfg.OrderLockTTL,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		OrdersHandler:  orders.NewHandler(logger, orderService),
		CatalogHandler: catalog.NewHandler(logger, catalogService),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()
	if err := cli.Run(ctx, jobsCLI, args, os.Stdout); err != nil {
		slog.Default().Error("jobs command", slog.Any("error", err))
		return 1
	}
	return 0
}
