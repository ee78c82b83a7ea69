package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSavingsFor(t *testing.T) {
	tenth := decimal.RequireFromString("0.1")
	cases := []struct {
		amount   int64
		fraction decimal.Decimal
		want     int64
		err      bool
	}{
		{100, tenth, 10, false},
		{15, tenth, 2, false}, // 1.5 rounds up
		{25, tenth, 3, false}, // 2.5 rounds up
		{14, tenth, 1, false}, // 1.4 rounds down
		{1000, decimal.NewFromInt(1), 1000, false},
		{333, decimal.RequireFromString("0.333"), 111, false},
		{1, tenth, 0, true}, // 0.1 rounds to nothing
		{0, tenth, 0, true},
		{-5, tenth, 0, true},
		{100, decimal.Zero, 0, true},
		{100, decimal.RequireFromString("1.5"), 0, true},
	}
	for _, c := range cases {
		got, err := SavingsFor(c.amount, c.fraction)
		if c.err {
			if err == nil {
				t.Fatalf("SavingsFor(%d, %s): expected error, got %d", c.amount, c.fraction, got)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("SavingsFor(%d, %s) = %d, %v; want %d", c.amount, c.fraction, got, err, c.want)
		}
	}
}

func TestSavingsForInvalidAmountSentinel(t *testing.T) {
	if _, err := SavingsFor(0, decimal.RequireFromString("0.1")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
}
