package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/importer"
	"cashflow/internal/ledger/memory"
	"cashflow/internal/metrics"
	"cashflow/internal/services"
)

const budgetCSV = "Concepto;Enero;Febrero\n" +
	"INGRESOS;;\n" +
	"Ventas;1000;500\n" +
	"GASTOS;;\n" +
	"Alquiler;300;300\n"

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New([]core.Category{
		{ID: "sales", Name: "ventas", Type: core.Income, Level: core.LevelEmpresa},
		{ID: "rent", Name: "alquiler", Type: core.Expense, Level: core.LevelEmpresa, Fixed: true},
	})
	dash := services.NewDashboardService(store, 16, time.Minute)
	dash.Now = func() time.Time { return fixedNow }
	imports := services.NewImportService(store, nil, dash, importer.Options{})
	imports.Now = dash.Now
	srv := NewServer(":0", services.NewLedgerService(store, dash), imports, dash, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get(requestIDHeader) == "" {
			t.Fatalf("%s: missing request id", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s: missing security headers", path)
		}
	}

	down, _ := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	if rr := do(t, down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	if rr := do(t, srv, http.MethodDelete, "/api/metrics", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"date":"2025-03-10","amount":120.50,"type":"expense","status":"real","origin":"business","categoryId":"rent","description":"march rent"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Transaction
	decode(t, rr, &created)
	if created.ID == "" || created.Amount.Cents != 12050 {
		t.Fatalf("unexpected created transaction %+v", created)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions?year=2025", "")
	var list []core.Transaction
	decode(t, rr, &list)
	if len(list) != 1 {
		t.Fatalf("listed %d transactions, want 1", len(list))
	}
	rr = do(t, srv, http.MethodGet, "/api/transactions?year=2024", "")
	decode(t, rr, &list)
	if len(list) != 0 {
		t.Fatalf("2024 listed %d transactions, want 0", len(list))
	}

	rr = do(t, srv, http.MethodPut, "/api/transactions/"+created.ID,
		`{"date":"2025-03-10","amount":"130","type":"expense","status":"real","origin":"business","categoryId":"rent"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodPut, "/api/transactions/missing",
		`{"date":"2025-03-10","amount":"130","type":"expense","status":"real","origin":"business"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("update missing status=%d", rr.Code)
	}

	if rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestCreateTransactionErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"date":`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"unknown field", `{"date":"2025-01-01","amount":1,"bogus":true}`, http.StatusBadRequest},
		{"zero amount", `{"date":"2025-01-01","amount":0,"type":"income","status":"real","origin":"business"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"date":"2025-01-01","amount":1,"type":"gift","status":"real","origin":"business"}`, http.StatusUnprocessableEntity},
		{"missing date", `{"amount":1,"type":"income","status":"real","origin":"business"}`, http.StatusUnprocessableEntity},
		{"too many installments", `{"date":"2025-01-01","amount":1,"type":"income","status":"real","origin":"business","installments":500}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
			var body ErrorBody
			decode(t, rr, &body)
			if body.Error == "" {
				t.Fatalf("missing error message")
			}
		})
	}
}

func TestCreateInstallments(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"date":"2025-01-31","amount":100,"type":"expense","status":"projected","origin":"business","installments":3,"equalSplit":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var txs []core.Transaction
	decode(t, rr, &txs)
	if len(txs) != 3 {
		t.Fatalf("created %d installments, want 3", len(txs))
	}
	if txs[1].Date.String() != "2025-02-28" {
		t.Fatalf("second installment date = %s", txs[1].Date)
	}
	if txs[2].Amount.Cents != 3334 {
		t.Fatalf("last installment carries the remainder, got %d", txs[2].Amount.Cents)
	}
	stored, _ := store.ListTransactions(context.Background())
	if len(stored) != 3 {
		t.Fatalf("stored %d transactions", len(stored))
	}
}

func TestCategoryLifecycle(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/api/categories", `{"name":"  Salarios ","type":"expense","level":"empresa"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var c core.Category
	decode(t, rr, &c)
	if c.ID == "" || c.Name != "Salarios" {
		t.Fatalf("unexpected category %+v", c)
	}

	if rr = do(t, srv, http.MethodPost, "/api/categories", `{"name":"","type":"expense","level":"empresa"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPut, "/api/categories/"+c.ID, `{"name":"Nóminas","type":"expense","level":"empresa","color":"#ff0000"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	_ = store.CreateTransactions(context.Background(), []core.Transaction{{
		ID: "t1", Date: core.NewDate(2025, 2, 1), Amount: core.Money{Cents: 100},
		Type: core.Expense, Status: core.Real, Origin: core.Business, CategoryID: c.ID,
	}})
	rr = do(t, srv, http.MethodDelete, "/api/categories/"+c.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	var out map[string]int
	decode(t, rr, &out)
	if out["clearedTransactions"] != 1 {
		t.Fatalf("cleared = %d, want 1", out["clearedTransactions"])
	}

	rr = do(t, srv, http.MethodGet, "/api/categories", "")
	var cats []core.Category
	decode(t, rr, &cats)
	if len(cats) != 2 {
		t.Fatalf("listed %d categories, want 2", len(cats))
	}
}

func seedLedger(t *testing.T, store *memory.Store) {
	t.Helper()
	err := store.CreateTransactions(context.Background(), []core.Transaction{
		{ID: "i1", Date: core.NewDate(2025, 1, 5), Amount: core.Money{Cents: 500000}, Type: core.Income, Status: core.Real, Origin: core.Business, CategoryID: "sales"},
		{ID: "e1", Date: core.NewDate(2025, 1, 10), Amount: core.Money{Cents: 200000}, Type: core.Expense, Status: core.Real, Origin: core.Business, CategoryID: "rent"},
		{ID: "e2", Date: core.NewDate(2025, 8, 10), Amount: core.Money{Cents: 200000}, Type: core.Expense, Status: core.Projected, Origin: core.Business, CategoryID: "rent"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	seedLedger(t, store)

	rr := do(t, srv, http.MethodGet, "/api/metrics?year=2025&showProjected=true&origin=business&focus=all", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var res metrics.Result
	decode(t, rr, &res)
	if res.MonthlyData[0].Net.Cents != 300000 {
		t.Fatalf("january net = %d", res.MonthlyData[0].Net.Cents)
	}
	if res.MonthlyData[7].Expense.Cents != 200000 {
		t.Fatalf("august projected expense = %d", res.MonthlyData[7].Expense.Cents)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"year=abc", http.StatusBadRequest},
		{"showProjected=maybe", http.StatusBadRequest},
		{"origin=moon", http.StatusBadRequest},
		{"focus=nope", http.StatusBadRequest},
		{"year=1200", http.StatusBadRequest},
		{"", http.StatusOK},
	}
	for _, tt := range tests {
		if rr := do(t, srv, http.MethodGet, "/api/metrics?"+tt.query, ""); rr.Code != tt.want {
			t.Fatalf("%q: status=%d, want %d", tt.query, rr.Code, tt.want)
		}
	}
}

func TestAggregateEndpoints(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	seedLedger(t, store)

	rr := do(t, srv, http.MethodGet, "/api/aggregate/months?year=2025", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("months status=%d", rr.Code)
	}
	var months services.MonthsView
	decode(t, rr, &months)
	if months.Income.Real.Cents != 500000 || months.Expense.Projected.Cents != 200000 {
		t.Fatalf("unexpected totals %+v / %+v", months.Income, months.Expense)
	}

	rr = do(t, srv, http.MethodGet, "/api/aggregate/categories?year=2025&type=expense&showProjected=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("categories status=%d", rr.Code)
	}
	var cats services.CategoriesView
	decode(t, rr, &cats)
	if len(cats.Totals) != 1 || cats.Totals[0].Amount.Cents != 400000 {
		t.Fatalf("unexpected category totals %+v", cats.Totals)
	}

	if rr = do(t, srv, http.MethodGet, "/api/aggregate/categories?type=gift", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad type status=%d", rr.Code)
	}
}

func TestSimulateEndpoint(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	seedLedger(t, store)

	rr := do(t, srv, http.MethodPost, "/api/simulate",
		`{"filters":{"year":2025,"showProjected":true},"focus":"all","variables":[{"kind":"add","type":"income","month":2,"amount":1000}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var res metrics.Result
	decode(t, rr, &res)
	if res.MonthlyData[1].Income.Cents != 100000 {
		t.Fatalf("simulated february income = %d", res.MonthlyData[1].Income.Cents)
	}

	stored, _ := store.ListTransactions(context.Background())
	if len(stored) != 3 {
		t.Fatalf("simulation wrote to the ledger: %d transactions", len(stored))
	}

	rr = do(t, srv, http.MethodPost, "/api/simulate", `{"variables":[{"kind":"explode"}]}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid variable status=%d", rr.Code)
	}
}

func TestImportPreviewAndCommit(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview?filename=budget.csv", strings.NewReader(budgetCSV))
	req.Header.Set("Content-Type", "text/csv")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status=%d body=%s", rr.Code, rr.Body.String())
	}
	var preview importer.Result
	decode(t, rr, &preview)
	if !preview.Success || len(preview.Rows) != 4 {
		t.Fatalf("unexpected preview %+v", preview)
	}
	if preview.Stats.NewCategories != 0 {
		t.Fatalf("both categories exist, got %d new", preview.Stats.NewCategories)
	}

	payload, _ := json.Marshal(commitRequest{Rows: preview.Rows, Source: "budget.csv"})
	rr = do(t, srv, http.MethodPost, "/api/import/commit", string(payload))
	if rr.Code != http.StatusOK {
		t.Fatalf("commit status=%d body=%s", rr.Code, rr.Body.String())
	}
	var res services.CommitResult
	decode(t, rr, &res)
	if res.Inserted != 4 || res.Duplicates != 0 {
		t.Fatalf("unexpected commit %+v", res)
	}

	rr = do(t, srv, http.MethodPost, "/api/import/commit", string(payload))
	decode(t, rr, &res)
	if res.Inserted != 0 || res.Duplicates != 4 {
		t.Fatalf("re-commit should only find duplicates, got %+v", res)
	}

	if rr = do(t, srv, http.MethodPost, "/api/import/commit", `{"rows":[]}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty commit status=%d", rr.Code)
	}
}

func TestImportPreviewMultipart(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "budget.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(budgetCSV))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var preview importer.Result
	decode(t, rr, &preview)
	if len(preview.Rows) != 4 {
		t.Fatalf("rows=%d", len(preview.Rows))
	}
}

func TestImportPreviewUnparseable(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/api/import/preview?filename=old.xls", "not a workbook")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var preview importer.Result
	decode(t, rr, &preview)
	if preview.Success || len(preview.Errors) == 0 {
		t.Fatalf("expected a failure result, got %+v", preview)
	}
}

func TestImportLimits(t *testing.T) {
	srv, _ := newTestServer(t, Options{ImportMaxBytes: 16})
	if rr := do(t, srv, http.MethodPost, "/api/import/preview", budgetCSV); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized status=%d", rr.Code)
	}

	limited, _ := newTestServer(t, Options{ImportRatePerMinute: 1})
	if rr := do(t, limited, http.MethodPost, "/api/import/preview?filename=b.csv", budgetCSV); rr.Code != http.StatusOK {
		t.Fatalf("first preview status=%d", rr.Code)
	}
	rr := do(t, limited, http.MethodPost, "/api/import/preview?filename=b.csv", budgetCSV)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second preview status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if rr = do(t, limited, http.MethodGet, "/api/metrics", ""); rr.Code != http.StatusOK {
		t.Fatalf("dashboard must not be rate limited, status=%d", rr.Code)
	}
}
