package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashrecon/internal/app"
	"github.com/odyssey-erp/cashrecon/internal/closeout"
	closeouthttp "github.com/odyssey-erp/cashrecon/internal/closeout/http"
	"github.com/odyssey-erp/cashrecon/internal/drawer"
	drawerhttp "github.com/odyssey-erp/cashrecon/internal/drawer/http"
	"github.com/odyssey-erp/cashrecon/internal/evidence"
	evidencehttp "github.com/odyssey-erp/cashrecon/internal/evidence/http"
	"github.com/odyssey-erp/cashrecon/internal/observability"
	"github.com/odyssey-erp/cashrecon/internal/platform/cache"
	"github.com/odyssey-erp/cashrecon/internal/platform/db"
	"github.com/odyssey-erp/cashrecon/internal/rbac"
	"github.com/odyssey-erp/cashrecon/internal/rollover"
	rolloverhttp "github.com/odyssey-erp/cashrecon/internal/rollover/http"
	"github.com/odyssey-erp/cashrecon/internal/settings"
	"github.com/odyssey-erp/cashrecon/internal/shared"
	"github.com/odyssey-erp/cashrecon/jobs"
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

	logger := app.NewLogger(cfg, "api")

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("api"))
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions("api"))
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

	metrics := observability.NewMetrics("api")
	reconMetrics := observability.NewReconMetrics(metrics.Registerer())
	auditLogger := shared.NewAuditLogger(dbpool)
	settingsCache := settings.NewCache(settings.NewRepository(dbpool), redisClient, cfg.SettingsCacheTTL, logger)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Stores: rbacService, Logger: logger}

	drawerService := drawer.NewService(drawer.NewRepository(dbpool), settingsCache, jobClient, auditLogger, logger)
	drawerService.WithMetrics(reconMetrics)

	rolloverService := rollover.NewService(rollover.NewRepository(dbpool), auditLogger, logger)
	rolloverService.WithMetrics(reconMetrics)

	closeoutService := closeout.NewService(closeout.Deps{
		Repo:      closeout.NewRepository(dbpool),
		Settings:  settingsCache,
		Rollovers: rolloverService,
		Drawers:   drawerService,
		Audit:     auditLogger,
		Policy:    closeout.ReviewPolicy{WarnRequiresReview: cfg.CloseoutWarnRequiresReview},
		Logger:    logger,
	})
	closeoutService.WithMetrics(reconMetrics)

	evidenceService := evidence.NewService(evidence.NewRepository(dbpool), closeoutService, settingsCache, objectStore, auditLogger, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		RBACMiddleware:  rbacMiddleware,
		DrawerHandler:   drawerhttp.NewHandler(logger, drawerService, rbacMiddleware),
		RolloverHandler: rolloverhttp.NewHandler(logger, rolloverService, rbacMiddleware),
		CloseoutHandler: closeouthttp.NewHandler(logger, closeoutService, rbacMiddleware),
		EvidenceHandler: evidencehttp.NewHandler(logger, evidenceService),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
