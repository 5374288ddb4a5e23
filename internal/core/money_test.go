package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyFromDecimal(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{"1200.50", 120050, true},
		{"0", 0, true},
		{"-1", -100, true}, // conversion is sign-agnostic; Validate rejects
		{"92233720368547758080", 0, false}, // cents overflow int64
	}
	for _, tc := range cases {
		got, err := MoneyFromDecimal(decimal.RequireFromString(tc.in))
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d cents, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyDecimal(t *testing.T) {
	m := Money{Cents: 120050}
	if got := m.Decimal().StringFixed(2); got != "1200.50" {
		t.Fatalf("Decimal() = %s, want 1200.50", got)
	}
	back, err := MoneyFromDecimal(m.Decimal())
	if err != nil || back.Cents != m.Cents {
		t.Fatalf("round trip = %d (err=%v), want %d", back.Cents, err, m.Cents)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}
