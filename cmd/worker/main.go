package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-aid/meridian-aid/internal/app"
	"github.com/meridian-aid/meridian-aid/internal/beneficiaries"
	"github.com/meridian-aid/meridian-aid/internal/deliveries"
	"github.com/meridian-aid/meridian-aid/internal/forms"
	"github.com/meridian-aid/meridian-aid/internal/pii"
	"github.com/meridian-aid/meridian-aid/internal/platform/cache"
	"github.com/meridian-aid/meridian-aid/internal/platform/db"
	"github.com/meridian-aid/meridian-aid/internal/projects"
	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
	syncpkg "github.com/meridian-aid/meridian-aid/internal/sync"
	"github.com/meridian-aid/meridian-aid/jobs"
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

	cipher, err := pii.NewCipher(cfg.PIIKey)
	if err != nil {
		logger.Error("load pii key", slog.Any("error", err))
		os.Exit(1)
	}
	gate := pii.NewGate(cipher)

	rbacRepo := rbac.NewRepository(pool)
	resolver := rbac.NewResolver(rbacRepo, logger)
	authz := scope.NewAuthorizer(resolver, scope.NewCalculator(rbacRepo))

	projectsRepo := projects.NewRepository(pool)
	auditLogger := shared.NewAuditLogger(pool)

	deliveriesRepo := deliveries.NewRepository(pool)
	kpiCache := deliveries.NewCache(redisClient, cfg.KPICacheTTL)
	deliveriesService := deliveries.NewService(deliveriesRepo, projectsRepo, kpiCache, logger)

	syncService := syncpkg.NewService(
		projectsRepo,
		beneficiaries.NewRepository(pool),
		deliveriesRepo,
		forms.NewRepository(pool),
		projectsRepo,
		gate,
		auditLogger,
		logger,
	)
	exporter := syncpkg.NewExporter(syncService, cfg.SnapshotDir)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSyncSnapshot, Handler: jobs.NewSnapshotHandler(exporter, authz, logger)},
			{Type: jobs.TaskKPIWarmup, Handler: jobs.NewKPIWarmupHandler(deliveriesService, authz, logger)},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
