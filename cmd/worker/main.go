package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashrecon/internal/app"
	"github.com/odyssey-erp/cashrecon/internal/closeout"
	"github.com/odyssey-erp/cashrecon/internal/drawer"
	"github.com/odyssey-erp/cashrecon/internal/evidence"
	jobmetrics "github.com/odyssey-erp/cashrecon/internal/jobs"
	"github.com/odyssey-erp/cashrecon/internal/observability"
	"github.com/odyssey-erp/cashrecon/internal/platform/cache"
	"github.com/odyssey-erp/cashrecon/internal/platform/db"
	"github.com/odyssey-erp/cashrecon/internal/settings"
	"github.com/odyssey-erp/cashrecon/internal/shared"
	"github.com/odyssey-erp/cashrecon/jobs"
)

const metricsAddr = ":9091"

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

	logger := app.NewLogger(cfg, "worker")

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("worker"))
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions("worker"))
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	objectStore, closeStore, err := app.NewObjectStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open evidence bucket", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("evidence bucket close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics("worker")
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	settingsCache := settings.NewCache(settings.NewRepository(pool), redisClient, cfg.SettingsCacheTTL, logger)
	closeoutService := closeout.NewService(closeout.Deps{
		Repo:     closeout.NewRepository(pool),
		Settings: settingsCache,
		Policy:   closeout.ReviewPolicy{WarnRequiresReview: cfg.CloseoutWarnRequiresReview},
		Logger:   logger,
	})
	evidenceService := evidence.NewService(evidence.NewRepository(pool), closeoutService, settingsCache, objectStore, shared.NewAuditLogger(pool), logger)

	sweepJob := evidence.NewSweepJob(evidenceService, redislock.New(redisClient), logger, jobMetrics)
	alertJob := drawer.NewVarianceAlertJob(logger)

	sweepTask, err := jobs.NewEvidenceSweepTask(jobs.EvidenceSweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskEvidenceSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskDrawerVarianceAlert, Handler: alertJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PhotoSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
