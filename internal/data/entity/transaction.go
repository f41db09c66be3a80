package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusSucceeded  TransactionStatus = "succeeded"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
	TransactionStatusRefunded   TransactionStatus = "refunded"
)

// IsLive reports whether the transaction still blocks a new payment attempt.
func (s TransactionStatus) IsLive() bool {
	return s != TransactionStatusFailed && s != TransactionStatusCancelled
}

// Transaction is one processor-backed money movement tied to a booking.
type Transaction struct {
	Base
	BookingID        int64             `db:"booking_id"`
	PaymentIntentID  string            `db:"payment_intent_id"`
	GrossAmount      decimal.Decimal   `db:"gross_amount"`
	CommissionAmount decimal.Decimal   `db:"commission_amount"`
	CarrierAmount    decimal.Decimal   `db:"carrier_amount"`
	CommissionRate   decimal.Decimal   `db:"commission_rate"`
	Currency         string            `db:"currency"`
	Status           TransactionStatus `db:"status"`
	PaymentMethod    *string           `db:"payment_method"`
	RefundID         *string           `db:"refund_id"`
	RefundedAmount   decimal.Decimal   `db:"refunded_amount"`
	FailureReason    *string           `db:"failure_reason"`
	ProcessedAt      *time.Time        `db:"processed_at"`
}
