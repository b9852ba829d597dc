package fingerprint

import (
	"testing"

	"cashflow/internal/core"
)

func TestFingerprintDeterministic(t *testing.T) {
	d := core.NewDate(2025, 3, 1)
	a := Fingerprint(d, core.Money{Cents: 150050}, "Rent", core.Expense)
	b := Fingerprint(d, core.Money{Cents: 150050}, "Rent", core.Expense)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex, got %d chars", len(a))
	}
}

func TestFingerprintNormalization(t *testing.T) {
	d := core.NewDate(2025, 3, 1)
	m := core.Money{Cents: 10000}
	cases := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{"trailing space and case", "Rent ", "rent", true},
		{"leading space", "  RENT", "rent", true},
		{"different category", "Rent", "Food", false},
	}
	for _, tc := range cases {
		got := Fingerprint(d, m, tc.a, core.Expense) == Fingerprint(d, m, tc.b, core.Expense)
		if got != tc.equal {
			t.Fatalf("%s: equal=%v, want %v", tc.name, got, tc.equal)
		}
	}
}

func TestFingerprintFieldSensitivity(t *testing.T) {
	base := Fingerprint(core.NewDate(2025, 3, 1), core.Money{Cents: 100}, "x", core.Expense)
	others := []string{
		Fingerprint(core.NewDate(2025, 3, 2), core.Money{Cents: 100}, "x", core.Expense),
		Fingerprint(core.NewDate(2025, 3, 1), core.Money{Cents: 101}, "x", core.Expense),
		Fingerprint(core.NewDate(2025, 3, 1), core.Money{Cents: 100}, "x", core.Income),
	}
	for i, o := range others {
		if o == base {
			t.Fatalf("case %d: expected different fingerprint", i)
		}
	}
}

func TestFromTransactions(t *testing.T) {
	txs := []core.Transaction{
		{Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 500}, Type: core.Expense, CategoryID: "c1"},
		{Date: core.NewDate(2024, 1, 1), Amount: core.Money{Cents: 500}, Type: core.Expense, CategoryID: "c1"},
		{Date: core.NewDate(2025, 2, 1), Amount: core.Money{Cents: 700}, Type: core.Expense, Description: "Coffee"},
	}
	set := FromTransactions(txs, map[string]string{"c1": "Rent"}, map[int]bool{2025: true})
	if len(set) != 2 {
		t.Fatalf("expected 2 fingerprints for 2025, got %d", len(set))
	}
	if !set.Has(Fingerprint(core.NewDate(2025, 1, 1), core.Money{Cents: 500}, "rent", core.Expense)) {
		t.Fatalf("missing category-resolved fingerprint")
	}
	if !set.Has(Fingerprint(core.NewDate(2025, 2, 1), core.Money{Cents: 700}, "coffee", core.Expense)) {
		t.Fatalf("missing description fallback fingerprint")
	}
}
