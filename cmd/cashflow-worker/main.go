package main

import (
	"context"
	"os"

	"cashflow/internal/cli"
	"cashflow/internal/importer"
	"cashflow/internal/log"
	"cashflow/internal/services"
	gsheet "cashflow/internal/sheets/google"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(true)
	logger.Info("Starting cashflow-worker", "backend", cfg.DataBackend, "queue", cfg.AMQPQueue)

	store, closeLedger, err := cli.OpenLedger(cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err)
		os.Exit(1)
	}
	defer func() { _ = closeLedger() }()

	sheets, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := cli.ConnectAMQP(cfg, logger)
	if err != nil || amqpClient == nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// No dashboard runs in this process, so there is nothing to invalidate.
	imports := services.NewImportService(store, amqpClient, nil, importer.Options{
		WithinBatch: cfg.ImportWithinBatchDedup,
	})
	w := worker.NewImportWorker(sheets, imports, 0)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
	})

	if err := w.Run(ctx, amqpClient); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
	}
	<-done
	logger.Info("Worker stopped gracefully")
}
