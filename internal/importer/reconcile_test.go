package importer

import (
	"testing"

	"cashflow/internal/core"
	"cashflow/internal/fingerprint"
)

func sampleSheet() Matrix {
	return MatrixOf([][]interface{}{
		{"Concepto", "Enero", "Febrero", "Marzo", "2025"},
		{"INGRESOS"},
		{"Ventas", 1000.0, 1200.0},
		{"GASTOS"},
		{"Alquiler", 500.0, 500.0, 500.0},
		{"Software", 49.99},
	})
}

func TestReconcileRoundTrip(t *testing.T) {
	first := ParseMatrix(sampleSheet(), testNow)
	if !first.Success || len(first.Rows) != 6 {
		t.Fatalf("unexpected first parse: %+v", first)
	}
	rows := Reconcile(first.Rows, fingerprint.NewSet(), Options{})
	if got := len(Accepted(rows)); got != 6 {
		t.Fatalf("expected all rows accepted against an empty ledger, got %d", got)
	}

	// Persist the accepted rows the way the ledger stores them.
	var cats []core.Category
	catIDs := map[string]string{}
	var txs []core.Transaction
	for i, r := range Accepted(rows) {
		key := CategoryKey(r.CategoryName, r.Type)
		id, ok := catIDs[key]
		if !ok {
			id = r.CategoryName + "-" + string(r.Type)
			catIDs[key] = id
			cats = append(cats, core.Category{ID: id, Name: r.CategoryName, Type: r.Type})
		}
		txs = append(txs, core.Transaction{
			ID: string(rune('a' + i)), Date: r.Date, Amount: r.Amount, Type: r.Type,
			Status: r.Status, Origin: r.Origin, CategoryID: id,
		})
	}
	names := map[string]string{}
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	second := ParseMatrix(sampleSheet(), testNow)
	existing := fingerprint.FromTransactions(txs, names, Years(second.Rows))
	again := Reconcile(second.Rows, existing, Options{})
	for _, r := range again {
		if !r.IsDuplicate {
			t.Fatalf("row not flagged as duplicate on re-import: %+v", r)
		}
	}
	if len(Accepted(again)) != 0 {
		t.Fatalf("duplicates must be excluded from commit")
	}
	stats := Summarize(again, cats)
	if stats.PotentialDuplicates != 6 || stats.EstimatedTotalAmount.Cents != 0 || stats.NewCategories != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestReconcileWithinBatch(t *testing.T) {
	row := core.ImportedRow{Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 100}, CategoryName: "Luz", Type: core.Expense}
	rows := []core.ImportedRow{row, row}

	def := Reconcile(rows, fingerprint.NewSet(), Options{})
	if def[0].IsDuplicate || def[1].IsDuplicate {
		t.Fatalf("same-batch repeats must not be flagged by default: %+v", def)
	}
	strict := Reconcile(rows, fingerprint.NewSet(), Options{WithinBatch: true})
	if strict[0].IsDuplicate || !strict[1].IsDuplicate {
		t.Fatalf("expected only the second repeat flagged: %+v", strict)
	}
	if rows[1].IsDuplicate || rows[1].Fingerprint != "" {
		t.Fatalf("input rows must not be mutated")
	}
}

func TestSummarizeSuggestions(t *testing.T) {
	known := []core.Category{
		{ID: "1", Name: "Alquiler", Type: core.Expense},
		{ID: "2", Name: "Consultoría", Type: core.Income},
	}
	rows := []core.ImportedRow{
		{CategoryName: "alquiler ", Type: core.Expense, Amount: core.Money{Cents: 100}},
		{CategoryName: "Alquilr", Type: core.Expense, Amount: core.Money{Cents: 200}},
		{CategoryName: "Alquilr", Type: core.Expense, Amount: core.Money{Cents: 200}, IsDuplicate: true},
		{CategoryName: "Alquiler", Type: core.Income, Amount: core.Money{Cents: 300}},
	}
	stats := Summarize(rows, known)
	if stats.TotalRows != 4 || stats.PotentialDuplicates != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.NewCategories != 2 {
		t.Fatalf("expected 2 new categories (Alquilr expense, Alquiler income), got %d", stats.NewCategories)
	}
	if stats.EstimatedTotalAmount.Cents != 600 {
		t.Fatalf("estimated total = %d", stats.EstimatedTotalAmount.Cents)
	}
	if stats.Suggestions["Alquilr"] != "Alquiler" {
		t.Fatalf("expected suggestion for typo, got %+v", stats.Suggestions)
	}
	if _, ok := stats.Suggestions["Alquiler"]; ok {
		t.Fatalf("suggestions must respect category type: %+v", stats.Suggestions)
	}
}
