package request

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateBookingRequest struct {
	TripID              string          `json:"trip_id" validate:"required,uuid"`
	CarrierID           string          `json:"carrier_id" validate:"required,uuid"`
	PackageDescription  string          `json:"package_description" validate:"required,min=1,max=1000"`
	Weight              decimal.Decimal `json:"weight" validate:"gt=0"`
	ProposedPrice       decimal.Decimal `json:"proposed_price" validate:"gt=0"`
	Currency            string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	PickupAddress       string          `json:"pickup_address" validate:"required,max=500"`
	DeliveryAddress     string          `json:"delivery_address" validate:"required,max=500"`
	SpecialInstructions *string         `json:"special_instructions,omitempty" validate:"omitempty,max=1000"`
	PhotoURLs           []string        `json:"photo_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	ExpiresAt           *time.Time      `json:"expires_at,omitempty"`
}

type ProposeNegotiationRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	Message *string         `json:"message,omitempty" validate:"omitempty,max=500"`
}

// AcceptBookingRequest accepts at the proposed price unless FinalPrice is set.
type AcceptBookingRequest struct {
	FinalPrice *decimal.Decimal `json:"final_price,omitempty"`
}

type RejectBookingRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=100"`
}

type CancelBookingRequest struct {
	Reason  string  `json:"reason" validate:"required,max=100"`
	Details *string `json:"details,omitempty" validate:"omitempty,max=1000"`
}

type DisputeBookingRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ConfirmPaymentRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,max=255"`
}

// RefundRequest refunds the whole charge when Amount is omitted.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason" validate:"required,max=500"`
}

type ReleaseEscrowRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Notes  *string         `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type FeePreviewRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	RequesterID string          `json:"requester_id,omitempty" validate:"omitempty,uuid"`
}
