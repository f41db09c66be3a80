package response

import (
	"time"

	"courier-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

type TransactionResponse struct {
	ID               int64                    `json:"id"`
	PaymentIntentID  string                   `json:"payment_intent_id"`
	ClientSecret     string                   `json:"client_secret,omitempty"`
	GrossAmount      decimal.Decimal          `json:"gross_amount"`
	CommissionAmount decimal.Decimal          `json:"commission_amount"`
	CarrierAmount    decimal.Decimal          `json:"carrier_amount"`
	CommissionRate   decimal.Decimal          `json:"commission_rate"`
	Currency         string                   `json:"currency"`
	Status           entity.TransactionStatus `json:"status"`
	PaymentMethod    *string                  `json:"payment_method,omitempty"`
	RefundedAmount   decimal.Decimal          `json:"refunded_amount"`
	FailureReason    *string                  `json:"failure_reason,omitempty"`
	ProcessedAt      *time.Time               `json:"processed_at,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
}

type FeeBreakdownResponse struct {
	TierRate          decimal.Decimal `json:"tier_rate"`
	CountDiscount     decimal.Decimal `json:"count_discount"`
	VolumeDiscount    decimal.Decimal `json:"volume_discount"`
	TotalDiscount     decimal.Decimal `json:"total_discount"`
	CompletedBookings int64           `json:"completed_bookings"`
	CompletedVolume   decimal.Decimal `json:"completed_volume"`
}

type FeeQuoteResponse struct {
	BaseAmount       decimal.Decimal      `json:"base_amount"`
	Rate             decimal.Decimal      `json:"rate"`
	CommissionAmount decimal.Decimal      `json:"commission_amount"`
	TotalAmount      decimal.Decimal      `json:"total_amount"`
	CarrierAmount    decimal.Decimal      `json:"carrier_amount"`
	Breakdown        FeeBreakdownResponse `json:"breakdown"`
}

type EscrowResponse struct {
	ID             int64               `json:"id"`
	TransactionID  int64               `json:"transaction_id"`
	AmountHeld     decimal.Decimal     `json:"amount_held"`
	AmountReleased decimal.Decimal     `json:"amount_released"`
	Remaining      decimal.Decimal     `json:"remaining"`
	Status         entity.EscrowStatus `json:"status"`
	HoldReason     string              `json:"hold_reason"`
	TransferID     *string             `json:"transfer_id,omitempty"`
	ReleasedAt     *time.Time          `json:"released_at,omitempty"`
	ReleaseNotes   *string             `json:"release_notes,omitempty"`
}

type PayoutAccountResponse struct {
	ID                int64                      `json:"id"`
	ExternalAccountID string                     `json:"external_account_id"`
	Status            entity.PayoutAccountStatus `json:"status"`
	DetailsSubmitted  bool                       `json:"details_submitted"`
	ChargesEnabled    bool                       `json:"charges_enabled"`
	PayoutsEnabled    bool                       `json:"payouts_enabled"`
	OnboardingURL     *string                    `json:"onboarding_url,omitempty"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

type WebhookResponse struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate"`
}

// Helper converters
func TransactionToResponse(t *entity.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:               t.ID,
		PaymentIntentID:  t.PaymentIntentID,
		GrossAmount:      t.GrossAmount,
		CommissionAmount: t.CommissionAmount,
		CarrierAmount:    t.CarrierAmount,
		CommissionRate:   t.CommissionRate,
		Currency:         t.Currency,
		Status:           t.Status,
		PaymentMethod:    t.PaymentMethod,
		RefundedAmount:   t.RefundedAmount,
		FailureReason:    t.FailureReason,
		ProcessedAt:      t.ProcessedAt,
		CreatedAt:        t.CreatedAt,
	}
}

func FeeQuoteToResponse(q *entity.FeeQuote) *FeeQuoteResponse {
	return &FeeQuoteResponse{
		BaseAmount:       q.BaseAmount,
		Rate:             q.Rate,
		CommissionAmount: q.CommissionAmount,
		TotalAmount:      q.TotalAmount,
		CarrierAmount:    q.CarrierAmount,
		Breakdown: FeeBreakdownResponse{
			TierRate:          q.Breakdown.TierRate,
			CountDiscount:     q.Breakdown.CountDiscount,
			VolumeDiscount:    q.Breakdown.VolumeDiscount,
			TotalDiscount:     q.Breakdown.TotalDiscount,
			CompletedBookings: q.Breakdown.CompletedBookings,
			CompletedVolume:   q.Breakdown.CompletedVolume,
		},
	}
}

func EscrowToResponse(e *entity.EscrowRecord) *EscrowResponse {
	return &EscrowResponse{
		ID:             e.ID,
		TransactionID:  e.TransactionID,
		AmountHeld:     e.AmountHeld,
		AmountReleased: e.AmountReleased,
		Remaining:      e.Remaining(),
		Status:         e.Status,
		HoldReason:     e.HoldReason,
		TransferID:     e.TransferID,
		ReleasedAt:     e.ReleasedAt,
		ReleaseNotes:   e.ReleaseNotes,
	}
}

func PayoutAccountToResponse(a *entity.PayoutAccount) *PayoutAccountResponse {
	return &PayoutAccountResponse{
		ID:                a.ID,
		ExternalAccountID: a.ExternalAccountID,
		Status:            a.Status,
		DetailsSubmitted:  a.DetailsSubmitted,
		ChargesEnabled:    a.ChargesEnabled,
		PayoutsEnabled:    a.PayoutsEnabled,
		OnboardingURL:     a.OnboardingURL,
		UpdatedAt:         a.UpdatedAt,
	}
}
