package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cashflow/internal/config"
	"cashflow/internal/importer"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

const budgetCSV = "Presupuesto 2025;;\n" +
	"Concepto;Enero;Febrero\n" +
	"INGRESOS;;\n" +
	"Ventas;1000;500\n" +
	"GASTOS;;\n" +
	"Alquiler;300;300\n" +
	"Sofware;50;50\n"

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantErr   bool
		wantRange string
	}{
		{name: "no source", args: nil, wantErr: true},
		{name: "both sources", args: []string{"-file", "a.csv", "-sheet", "A1"}, wantErr: true},
		{name: "enqueue needs sheet", args: []string{"-file", "a.csv", "-enqueue"}, wantErr: true},
		{name: "bad year", args: []string{"-sheet", "Budget", "-year", "99"}, wantErr: true},
		{name: "unknown flag", args: []string{"-nope"}, wantErr: true},
		{name: "file", args: []string{"-file", " a.csv ", "-commit"}},
		{name: "year prefixes sheet", args: []string{"-sheet", "Budget!A1:N80", "-year", "2025"}, wantRange: "'2025 Budget'!A1:N80"},
		{name: "year already present", args: []string{"-sheet", "'2024 Budget'!A1:N80", "-year", "2025"}, wantRange: "'2024 Budget'!A1:N80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", o)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantRange != "" && o.sheetRange != tt.wantRange {
				t.Fatalf("sheetRange = %q, want %q", o.sheetRange, tt.wantRange)
			}
		})
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	seed := "ventas;Ventas;income;empresa\nalquiler;Alquiler;expense;empresa\nsoftware;Software;expense;empresa\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		DataBackend:  config.BackendSQLite,
		SQLiteDBPath: filepath.Join(dir, "ledger.db"),
		SeedDir:      dir,
	}
}

func writeBudget(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "budget.csv")
	if err := os.WriteFile(path, []byte(budgetCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func TestRunPreview(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataBackend = config.BackendMemory

	var out bytes.Buffer
	err := run(context.Background(), cfg, quietLogger(), options{file: writeBudget(t)}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "year 2025: 6 rows, 0 already in the ledger, 1 new categories") {
		t.Fatalf("unexpected preview output:\n%s", text)
	}
	if !strings.Contains(text, `"Sofware" looks like existing category "Software"`) {
		t.Fatalf("missing suggestion:\n%s", text)
	}
}

// The SQLite ledger starts without categories, so every name in the budget
// is created on the first commit.
func TestRunCommitIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	path := writeBudget(t)

	var out bytes.Buffer
	opts := options{file: path, commit: true, asJSON: true}
	if err := run(context.Background(), cfg, quietLogger(), opts, &out); err != nil {
		t.Fatalf("first run: %v", err)
	}
	var first services.CommitResult
	if err := json.Unmarshal(out.Bytes(), &first); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if first.Inserted != 6 || first.NewCategories != 3 {
		t.Fatalf("first commit = %+v", first)
	}

	out.Reset()
	if err := run(context.Background(), cfg, quietLogger(), opts, &out); err != nil {
		t.Fatalf("second run: %v", err)
	}
	var second services.CommitResult
	if err := json.Unmarshal(out.Bytes(), &second); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if second.Inserted != 0 || second.Duplicates != 6 {
		t.Fatalf("second commit = %+v", second)
	}
}

func TestRunUnparseable(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataBackend = config.BackendMemory
	path := filepath.Join(t.TempDir(), "notes.csv")
	if err := os.WriteFile(path, []byte("hello;world\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := run(context.Background(), cfg, quietLogger(), options{file: path, asJSON: true}, &out)
	if err == nil {
		t.Fatalf("expected an error")
	}
	var res importer.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if res.Success || len(res.Errors) == 0 {
		t.Fatalf("expected failure result, got %+v", res)
	}
}

func TestRunEnqueueNeedsBroker(t *testing.T) {
	cfg := testConfig(t)
	err := run(context.Background(), cfg, quietLogger(), options{sheetRange: "Budget", enqueue: true}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "AMQP_URL") {
		t.Fatalf("expected AMQP error, got %v", err)
	}
}
