package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscrowStatus string

const (
	EscrowStatusHolding        EscrowStatus = "holding"
	EscrowStatusPartialRelease EscrowStatus = "partial_release"
	EscrowStatusFullyReleased  EscrowStatus = "fully_released"
	EscrowStatusRefunded       EscrowStatus = "refunded"
)

// EscrowRecord tracks funds held for one succeeded transaction.
type EscrowRecord struct {
	Base
	TransactionID  int64           `db:"transaction_id"`
	AmountHeld     decimal.Decimal `db:"amount_held"`
	AmountReleased decimal.Decimal `db:"amount_released"`
	Status         EscrowStatus    `db:"status"`
	HoldReason     string          `db:"hold_reason"`
	TransferID     *string         `db:"transfer_id"`
	ReleasedAt     *time.Time      `db:"released_at"`
	ReleaseNotes   *string         `db:"release_notes"`
}

func (e *EscrowRecord) Remaining() decimal.Decimal {
	return e.AmountHeld.Sub(e.AmountReleased)
}

// EscrowStatusFor derives the release status from the amounts.
func EscrowStatusFor(held, released decimal.Decimal) EscrowStatus {
	switch {
	case released.GreaterThanOrEqual(held):
		return EscrowStatusFullyReleased
	case released.IsPositive():
		return EscrowStatusPartialRelease
	default:
		return EscrowStatusHolding
	}
}
