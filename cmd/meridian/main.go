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

	"github.com/meridian-aid/meridian-aid/internal/app"
	"github.com/meridian-aid/meridian-aid/internal/audit"
	"github.com/meridian-aid/meridian-aid/internal/auth"
	"github.com/meridian-aid/meridian-aid/internal/beneficiaries"
	"github.com/meridian-aid/meridian-aid/internal/deliveries"
	"github.com/meridian-aid/meridian-aid/internal/forms"
	"github.com/meridian-aid/meridian-aid/internal/observability"
	"github.com/meridian-aid/meridian-aid/internal/pii"
	"github.com/meridian-aid/meridian-aid/internal/platform/cache"
	"github.com/meridian-aid/meridian-aid/internal/platform/db"
	"github.com/meridian-aid/meridian-aid/internal/projects"
	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
	syncpkg "github.com/meridian-aid/meridian-aid/internal/sync"
	"github.com/meridian-aid/meridian-aid/internal/users"
	"github.com/meridian-aid/meridian-aid/jobs"
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

	cipher, err := pii.NewCipher(cfg.PIIKey)
	if err != nil {
		logger.Error("load pii key", slog.Any("error", err))
		os.Exit(1)
	}
	gate := pii.NewGate(cipher)

	rbacRepo := rbac.NewRepository(dbpool)
	resolver := rbac.NewResolver(rbacRepo, logger)
	rbacMiddleware := rbac.Middleware{Resolver: resolver, Logger: logger}
	authz := scope.NewAuthorizer(resolver, scope.NewCalculator(rbacRepo))

	auditLogger := shared.NewAuditLogger(dbpool)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	refreshStore := auth.NewRefreshStore(redisClient)
	authService := auth.NewService(auth.NewRepository(dbpool), resolver, issuer, refreshStore, auditLogger, logger)
	authHandler := auth.NewHandler(logger, authService)

	projectsRepo := projects.NewRepository(dbpool)
	projectsHandler := projects.NewHandler(logger, projects.NewService(projectsRepo), authz, rbacMiddleware)

	beneficiariesRepo := beneficiaries.NewRepository(dbpool)
	beneficiariesService := beneficiaries.NewService(beneficiariesRepo, gate, projectsRepo, auditLogger, logger)
	beneficiariesHandler := beneficiaries.NewHandler(logger, beneficiariesService, authz, rbacMiddleware)

	deliveriesRepo := deliveries.NewRepository(dbpool)
	kpiCache := deliveries.NewCache(redisClient, cfg.KPICacheTTL)
	deliveriesService := deliveries.NewService(deliveriesRepo, projectsRepo, kpiCache, logger)
	deliveriesHandler := deliveries.NewHandler(logger, deliveriesService, authz, rbacMiddleware)

	formsRepo := forms.NewRepository(dbpool)
	formsHandler := forms.NewHandler(logger, forms.NewService(formsRepo, projectsRepo), authz, rbacMiddleware)

	syncService := syncpkg.NewService(projectsRepo, beneficiariesRepo, deliveriesRepo, formsRepo, projectsRepo, gate, auditLogger, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("create job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	syncHandler := syncpkg.NewHandler(logger, syncService, jobClient, authz, rbacMiddleware)

	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(dbpool), auditLogger, logger), rbacMiddleware)
	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Auth:           authHandler,
		Projects:       projectsHandler,
		Beneficiaries:  beneficiariesHandler,
		Deliveries:     deliveriesHandler,
		Forms:          formsHandler,
		Sync:           syncHandler,
		Users:          usersHandler,
		Audit:          auditHandler,
		Jobs:           jobHandler,
		AuthMiddleware: auth.Middleware(issuer),
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
