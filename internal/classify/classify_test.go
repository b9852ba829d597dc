package classify

import (
	"testing"

	"cashflow/internal/core"
)

var cats = []core.Category{
	{ID: "biz", Name: "Software", Type: core.Expense, Level: core.LevelEmpresa, Color: "#111"},
	{ID: "gym", Name: "Gym", Type: core.Expense, Level: core.LevelPersonal, Sublevel: core.SublevelDeporte, Color: "#222"},
	{ID: "odd", Name: "Odd", Type: core.Expense, Level: core.LevelEmpresa, Sublevel: core.SublevelCasa},
}

func TestClassify(t *testing.T) {
	idx := NewIndex(cats)
	cases := []struct {
		categoryID string
		want       core.Classification
	}{
		{"biz", core.Classification{Level: core.LevelEmpresa, Color: "#111"}},
		{"gym", core.Classification{Level: core.LevelPersonal, Sublevel: core.SublevelDeporte, Color: "#222"}},
		{"odd", core.Classification{Level: core.LevelEmpresa}},
		{"", core.Classification{Level: core.LevelEmpresa}},
		{"deleted", core.Classification{Level: core.LevelEmpresa}},
	}
	for _, tc := range cases {
		got := Classify(core.Transaction{CategoryID: tc.categoryID}, idx)
		if got != tc.want {
			t.Fatalf("%q: got %+v, want %+v", tc.categoryID, got, tc.want)
		}
	}
}

func TestByFocus(t *testing.T) {
	idx := NewIndex(cats)
	txs := []core.Transaction{
		{ID: "1", CategoryID: "biz"},
		{ID: "2", CategoryID: "gym"},
		{ID: "3", CategoryID: "deleted"},
		{ID: "4"},
	}
	if got := ByFocus(txs, idx, core.FocusAll); len(got) != 4 {
		t.Fatalf("all: got %d", len(got))
	}
	company := ByFocus(txs, idx, core.FocusCompany)
	if len(company) != 3 {
		t.Fatalf("company view must include dangling references, got %d", len(company))
	}
	personal := ByFocus(txs, idx, core.FocusPersonal)
	if len(personal) != 1 || personal[0].ID != "2" {
		t.Fatalf("personal: %+v", personal)
	}
}
