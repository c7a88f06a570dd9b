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

	"github.com/medipos/medipos/internal/app"
	"github.com/medipos/medipos/internal/auth"
	"github.com/medipos/medipos/internal/customers"
	"github.com/medipos/medipos/internal/invoices"
	"github.com/medipos/medipos/internal/medicines"
	"github.com/medipos/medipos/internal/observability"
	"github.com/medipos/medipos/internal/platform/cache"
	"github.com/medipos/medipos/internal/platform/db"
	"github.com/medipos/medipos/internal/reports"
	"github.com/medipos/medipos/internal/shared"
	"github.com/medipos/medipos/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports served uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	authService := auth.NewService(auth.NewRepository(pool))
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	medicinesService := medicines.NewService(medicines.NewRepository(pool), auditLogger)
	medicinesHandler := medicines.NewHandler(logger, medicinesService, cfg.LowStockThreshold)

	customersService := customers.NewService(customers.NewRepository(pool))
	customersHandler := customers.NewHandler(logger, customersService)

	metrics := observability.NewMetrics()

	invoicesService := invoices.NewService(invoices.NewRepository(pool), auditLogger)
	invoicesHandler := invoices.NewHandler(logger, invoicesService, metrics)

	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reports.NewRepository(pool), reportsCache, cfg.LowStockThreshold, cfg.ExpiryWindow)
	reportsHandler := reports.NewHandler(logger, reportsService)

	var jobsHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobsClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		jobsHandler = jobs.NewHandler(inspector, jobsClient, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Auth:             authMiddleware,
		MedicinesHandler: medicinesHandler,
		CustomersHandler: customersHandler,
		InvoicesHandler:  invoicesHandler,
		ReportsHandler:   reportsHandler,
		JobsHandler:      jobsHandler,
		Pool:             pool,
		Metrics:          metrics,
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
