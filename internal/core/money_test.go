package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		150050: "1500.50",
		100:    "1.00",
		7:      "0.07",
		0:      "0.00",
		-1250:  "-12.50",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`1500.5`), &m); err != nil || m.Cents != 150050 {
		t.Fatalf("number: got %d err=%v", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"12.345"`), &m); err != nil || m.Cents != 1235 {
		t.Fatalf("string: got %d err=%v", m.Cents, err)
	}
	b, err := json.Marshal(Money{Cents: 42})
	if err != nil || string(b) != "0.42" {
		t.Fatalf("marshal: got %s err=%v", b, err)
	}
}

func TestSplit(t *testing.T) {
	var s Split
	s.Add(Real, Money{Cents: 100})
	s.Add(Projected, Money{Cents: 50})
	if s.Total().Cents != 150 {
		t.Fatalf("total = %d", s.Total().Cents)
	}
	if s.Visible(false).Cents != 100 || s.Visible(true).Cents != 150 {
		t.Fatalf("visible: %+v", s)
	}
}
