package entity

import (
	"github.com/shopspring/decimal"
)

// FeeQuote is the commission breakdown for one base amount. Rates are
// expressed in percentage points.
type FeeQuote struct {
	BaseAmount       decimal.Decimal
	Rate             decimal.Decimal
	CommissionAmount decimal.Decimal
	TotalAmount      decimal.Decimal
	CarrierAmount    decimal.Decimal
	Breakdown        FeeBreakdown
}

type FeeBreakdown struct {
	TierRate          decimal.Decimal
	CountDiscount     decimal.Decimal
	VolumeDiscount    decimal.Decimal
	TotalDiscount     decimal.Decimal
	CompletedBookings int64
	CompletedVolume   decimal.Decimal
}

// RequesterHistory aggregates a user's completed bookings over a window.
type RequesterHistory struct {
	CompletedBookings int64
	CompletedVolume   decimal.Decimal
}
