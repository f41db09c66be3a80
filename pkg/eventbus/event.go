// Package eventbus carries settlement events from the outbox to consumers.
package eventbus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeBookingCreated     = "booking.created"
	TypeNegotiationOffered = "booking.negotiation_offered"
	TypeBookingAccepted    = "booking.accepted"
	TypePaymentRequired    = "payment.required"
	TypePaymentConfirmed   = "payment.confirmed"
	TypeBookingInTransit   = "booking.in_transit"
	TypeBookingDelivered   = "booking.delivered"
	TypeBookingCompleted   = "booking.completed"
	TypeFundsReleased      = "funds.released"
	TypeBookingRejected    = "booking.rejected"
	TypeBookingCancelled   = "booking.cancelled"
	TypeBookingDisputed    = "booking.disputed"
	TypePaymentRefunded    = "payment.refunded"
)

type Amounts struct {
	Currency   string           `json:"currency"`
	Amount     decimal.Decimal  `json:"amount"`
	Commission *decimal.Decimal `json:"commission,omitempty"`
	CarrierNet *decimal.Decimal `json:"carrier_net,omitempty"`
}

// Event is the envelope published for every settlement-relevant transition.
type Event struct {
	EventID       uuid.UUID `json:"event_id"`
	Type          string    `json:"type"`
	BookingID     uuid.UUID `json:"booking_id"`
	ActorID       uuid.UUID `json:"actor_id"`
	CounterpartID uuid.UUID `json:"counterpart_id"`
	Amounts       *Amounts  `json:"amounts,omitempty"`
	Route         string    `json:"route,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers an encoded event. key groups events of one booking on
// the same partition.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, key string) error
	Close() error
}
