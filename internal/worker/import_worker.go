// Package worker runs spreadsheet imports requested over AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/importer"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

// MatrixReader reads a spreadsheet range as cells.
type MatrixReader interface {
	ReadMatrix(ctx context.Context, spreadsheetID, rng string) (importer.Matrix, error)
}

// Importer is the part of services.ImportService the worker needs.
type Importer interface {
	PreviewMatrix(ctx context.Context, m importer.Matrix) (importer.Result, error)
	Commit(ctx context.Context, rows []core.ImportedRow, source string) (services.CommitResult, error)
}

// Consumer delivers import requests until ctx is done or the connection
// drops.
type Consumer interface {
	ConsumeImportRequests(ctx context.Context, handler func(context.Context, *amqp.ImportRequestMessage) error) error
}

const maxRetryDelay = time.Minute

// ImportWorker turns import requests into previews or commits.
type ImportWorker struct {
	reader  MatrixReader
	imports Importer
	timeout time.Duration
	logger  *log.Logger
}

// NewImportWorker bounds each request by timeout; zero means two minutes.
func NewImportWorker(reader MatrixReader, imports Importer, timeout time.Duration) *ImportWorker {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ImportWorker{
		reader:  reader,
		imports: imports,
		timeout: timeout,
		logger:  log.Component(log.ComponentWorker),
	}
}

// HandleImportRequest reads the requested range, reconciles it and commits it
// when asked. Only transient failures (reading the sheet, ledger errors) are
// returned so that the message is retried; a sheet that does not parse is
// logged and acknowledged.
func (w *ImportWorker) HandleImportRequest(ctx context.Context, msg *amqp.ImportRequestMessage) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	logger := w.logger.With(log.FieldSpreadsheetID, msg.SpreadsheetID, log.FieldRange, msg.Range)
	logger.InfoContext(ctx, "Processing import request", "commit", msg.Commit, "requested_by", msg.RequestedBy)

	m, err := w.reader.ReadMatrix(ctx, msg.SpreadsheetID, msg.Range)
	if err != nil {
		return fmt.Errorf("read range: %w", err)
	}

	res, err := w.imports.PreviewMatrix(ctx, m)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	if !res.Success {
		logger.WarnContext(ctx, "Sheet could not be imported", "errors", res.Errors)
		return nil
	}

	logger.InfoContext(ctx, "Import preview",
		log.FieldYear, res.Year,
		"rows", res.Stats.TotalRows,
		"duplicates", res.Stats.PotentialDuplicates,
		"new_categories", res.Stats.NewCategories,
		"estimated_total", res.Stats.EstimatedTotalAmount.String())
	if !msg.Commit {
		return nil
	}

	result, err := w.imports.Commit(ctx, res.Rows, Source(msg))
	switch {
	case errors.Is(err, services.ErrNothingToImport):
		logger.InfoContext(ctx, "Nothing to import")
		return nil
	case err != nil:
		return fmt.Errorf("commit: %w", err)
	}
	logger.InfoContext(ctx, "Import request committed",
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"new_categories", result.NewCategories)
	return nil
}

// Source labels rows committed for msg.
func Source(msg *amqp.ImportRequestMessage) string {
	return "sheets:" + msg.SpreadsheetID + "/" + msg.Range
}

// Run consumes import requests until ctx is cancelled, resubscribing with a
// growing delay whenever consumption stops.
func (w *ImportWorker) Run(ctx context.Context, consumer Consumer) error {
	for attempt := 0; ; attempt++ {
		started := time.Now()
		err := consumer.ConsumeImportRequests(ctx, w.HandleImportRequest)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > maxRetryDelay {
			attempt = 0
		}
		delay := retryDelay(attempt)
		w.logger.ErrorContext(ctx, "Import consumer stopped, retrying",
			log.FieldError, err,
			"attempt", attempt+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt > 6 {
		return maxRetryDelay
	}
	d := time.Second << attempt
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
