// Command cashflow-import previews or commits a budget spreadsheet into the
// configured ledger. The source is a local CSV/XLSX file or a Google Sheets
// range; with -enqueue the range is handed to cashflow-worker over AMQP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/importer"
	"cashflow/internal/log"
	"cashflow/internal/services"
	gsheet "cashflow/internal/sheets/google"
)

type options struct {
	file          string
	sheetRange    string
	spreadsheetID string
	year          int
	commit        bool
	enqueue       bool
	asJSON        bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("cashflow-import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.file, "file", "", "CSV or XLSX budget file to import")
	fs.StringVar(&o.sheetRange, "sheet", "", "Google Sheets range to import, e.g. 'Presupuesto!A1:N80'")
	fs.StringVar(&o.spreadsheetID, "spreadsheet", "", "spreadsheet id (default GOOGLE_SPREADSHEET_ID)")
	fs.IntVar(&o.year, "year", 0, "prefix the sheet name with this year unless it already has one")
	fs.BoolVar(&o.commit, "commit", false, "store the non-duplicate rows instead of only previewing")
	fs.BoolVar(&o.enqueue, "enqueue", false, "publish an import request for cashflow-worker instead of reading the sheet here")
	fs.BoolVar(&o.asJSON, "json", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	o.file = strings.TrimSpace(o.file)
	o.sheetRange = strings.TrimSpace(o.sheetRange)
	switch {
	case o.file == "" && o.sheetRange == "":
		return o, errors.New("one of -file or -sheet is required")
	case o.file != "" && o.sheetRange != "":
		return o, errors.New("-file and -sheet are mutually exclusive")
	case o.enqueue && o.sheetRange == "":
		return o, errors.New("-enqueue requires -sheet")
	case o.year != 0 && (o.year < 1900 || o.year > 2999):
		return o, fmt.Errorf("invalid -year %d", o.year)
	}
	if o.year != 0 && o.sheetRange != "" {
		o.sheetRange = gsheet.YearRange(o.sheetRange, o.year)
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "cashflow-import:", err)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, opts, os.Stdout); err != nil {
		logger.Error("Import failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, opts options, out io.Writer) error {
	spreadsheetID := opts.spreadsheetID
	if spreadsheetID == "" {
		spreadsheetID = cfg.GoogleSpreadsheetID
	}

	amqpClient, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		return err
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	if opts.enqueue {
		if amqpClient == nil {
			return errors.New("-enqueue needs AMQP_URL")
		}
		msg := amqp.NewImportRequestMessage(spreadsheetID, opts.sheetRange, opts.commit)
		msg.RequestedBy = "cashflow-import"
		if err := amqpClient.PublishImportRequest(ctx, msg); err != nil {
			return fmt.Errorf("publish import request: %w", err)
		}
		fmt.Fprintf(out, "queued import of %s (commit=%t)\n", opts.sheetRange, opts.commit)
		return nil
	}

	store, closeLedger, err := cli.OpenLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeLedger() }()

	var publisher services.Publisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	imports := services.NewImportService(store, publisher, nil, importer.Options{
		WithinBatch: cfg.ImportWithinBatchDedup,
	})

	var (
		res    importer.Result
		source string
	)
	if opts.file != "" {
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return fmt.Errorf("read %s: %w", opts.file, err)
		}
		source = "file:" + opts.file
		if res, err = imports.Preview(ctx, data, opts.file); err != nil {
			return err
		}
	} else {
		sheets, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   spreadsheetID,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return err
		}
		m, err := sheets.ReadMatrix(ctx, spreadsheetID, opts.sheetRange)
		if err != nil {
			return err
		}
		source = "sheets:" + spreadsheetID + "/" + opts.sheetRange
		if res, err = imports.PreviewMatrix(ctx, m); err != nil {
			return err
		}
	}

	if !res.Success {
		printJSONOr(out, opts.asJSON, res, func() {
			fmt.Fprintf(out, "could not parse %s:\n", source)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
		})
		return errors.New("spreadsheet could not be parsed")
	}

	if !opts.commit {
		printJSONOr(out, opts.asJSON, res, func() { printPreview(out, res) })
		return nil
	}

	committed, err := imports.Commit(ctx, res.Rows, source)
	if err != nil {
		return err
	}
	printJSONOr(out, opts.asJSON, committed, func() {
		fmt.Fprintf(out, "inserted %d rows, skipped %d duplicates, created %d categories\n",
			committed.Inserted, committed.Duplicates, committed.NewCategories)
	})
	return nil
}

func printJSONOr(out io.Writer, asJSON bool, v interface{}, text func()) {
	if !asJSON {
		text()
		return
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printPreview(out io.Writer, res importer.Result) {
	st := res.Stats
	fmt.Fprintf(out, "year %d: %d rows, %d already in the ledger, %d new categories, %s to import\n",
		res.Year, st.TotalRows, st.PotentialDuplicates, st.NewCategories, st.EstimatedTotalAmount)
	if res.Fallback {
		fmt.Fprintln(out, "note: no month header found, columns B to M were read as January to December")
	}
	for name, suggestion := range st.Suggestions {
		fmt.Fprintf(out, "  %q looks like existing category %q\n", name, suggestion)
	}
	fmt.Fprintln(out, "run again with -commit to store the rows")
}
