package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/cli"
	apphttp "cashflow/internal/http"
	"cashflow/internal/importer"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(false)
	logger.Info("Starting cashflow server", "backend", cfg.DataBackend)

	store, closeLedger, err := cli.OpenLedger(cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err)
		os.Exit(1)
	}

	// Import events are optional; the API works without a broker.
	var publisher services.Publisher
	amqpClient, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		logger.Warn("AMQP unavailable, import events disabled", log.FieldError, err)
	} else if amqpClient != nil {
		publisher = amqpClient
	}

	dashboard := services.NewDashboardService(store, cfg.MetricsCacheSize, cfg.MetricsCacheTTL)
	caches := cache.NewManager()
	caches.Register(dashboard.Caches()...)
	caches.StartCleanup(cfg.MetricsCacheTTL)

	ledgerSvc := services.NewLedgerService(store, dashboard)
	imports := services.NewImportService(store, publisher, dashboard, importer.Options{
		WithinBatch: cfg.ImportWithinBatchDedup,
	})

	srv := apphttp.NewServer(":"+cfg.Port, ledgerSvc, imports, dashboard, apphttp.Options{
		ImportMaxBytes:      cfg.ImportMaxBytes,
		ImportRatePerMinute: cfg.ImportRatePerMinute,
		Ready: func(ctx context.Context) error {
			_, err := store.Version(ctx)
			return err
		},
	})
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if err := closeLedger(); err != nil {
			logger.Error("Ledger close error", log.FieldError, err)
		}
	})

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
