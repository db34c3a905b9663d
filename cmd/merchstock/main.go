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

	"github.com/colorapp/merchstock/internal/app"
	"github.com/colorapp/merchstock/internal/catalog"
	"github.com/colorapp/merchstock/internal/ledger"
	"github.com/colorapp/merchstock/internal/merchandise"
	"github.com/colorapp/merchstock/internal/notify"
	"github.com/colorapp/merchstock/internal/observability"
	"github.com/colorapp/merchstock/internal/platform/cache"
	"github.com/colorapp/merchstock/internal/platform/db"
	"github.com/colorapp/merchstock/internal/shared"
	"github.com/colorapp/merchstock/jobs"
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
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	mailClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("asynq client", slog.Any("error", err))
	}
	defer func() {
		if mailClient != nil {
			if err := mailClient.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}
	}()

	var mailer notify.MailEnqueuer
	if mailClient != nil {
		mailer = mailClient
	}
	notifier := notify.NewService(dbpool, catalogService, mailer, logger)

	balanceCache := ledger.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)
	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, catalogService, notifier, auditLogger, metrics, balanceCache)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	merchandiseRepo := merchandise.NewRepository(dbpool)
	merchandiseService := merchandise.NewService(merchandiseRepo, ledgerService, catalogService, auditLogger, idempotencyStore)
	merchandiseHandler := merchandise.NewHandler(logger, merchandiseService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CatalogHandler:     catalogHandler,
		LedgerHandler:      ledgerHandler,
		MerchandiseHandler: merchandiseHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
