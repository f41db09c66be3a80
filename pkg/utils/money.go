package utils

import (
	"github.com/shopspring/decimal"
)

// MoneyTolerance is one minor currency unit.
var MoneyTolerance = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to 2 decimal places, which is
// half-up for the non-negative amounts handled here.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToMinorUnits converts an amount to cents for the payment processor.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// WithinTolerance reports |a-b| <= one minor unit.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MoneyTolerance)
}
