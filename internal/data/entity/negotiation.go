package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Negotiation is one price offer inside a booking. Rows are immutable apart
// from the acceptance flag.
type Negotiation struct {
	BaseSimple
	BookingID  int64           `db:"booking_id"`
	ProposerID uuid.UUID       `db:"proposer_id"`
	Amount     decimal.Decimal `db:"amount"`
	Message    *string         `db:"message"`
	IsAccepted bool            `db:"is_accepted"`
}
