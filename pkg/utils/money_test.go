package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundMoneyHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12.005", "12.01"},
		{"12.004", "12"},
		{"0.125", "0.13"},
		{"92", "92"},
	}
	for _, tc := range cases {
		got := RoundMoney(decimal.RequireFromString(tc.in))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("RoundMoney(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestMinorUnits(t *testing.T) {
	if got := ToMinorUnits(decimal.RequireFromString("92.10")); got != 9210 {
		t.Fatalf("ToMinorUnits = %d", got)
	}
	if got := FromMinorUnits(1500); !got.Equal(decimal.RequireFromString("15")) {
		t.Fatalf("FromMinorUnits = %s", got)
	}
}

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("15.00")
	if !WithinTolerance(a, decimal.RequireFromString("15.01")) {
		t.Fatal("one cent apart should be tolerated")
	}
	if WithinTolerance(a, decimal.RequireFromString("15.02")) {
		t.Fatal("two cents apart should not be tolerated")
	}
}
