package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusAccepted       BookingStatus = "accepted"
	BookingStatusPaymentPending BookingStatus = "payment_pending"
	BookingStatusPaid           BookingStatus = "paid"
	BookingStatusInTransit      BookingStatus = "in_transit"
	BookingStatusDelivered      BookingStatus = "delivered"
	BookingStatusCompleted      BookingStatus = "completed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusRejected       BookingStatus = "rejected"
	BookingStatusDisputed       BookingStatus = "disputed"
)

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRejected:
		return true
	}
	return false
}

// HasAgreedPrice reports whether a booking in this status carries a final price.
func (s BookingStatus) HasAgreedPrice() bool {
	switch s {
	case BookingStatusAccepted, BookingStatusPaymentPending, BookingStatusPaid,
		BookingStatusInTransit, BookingStatusDelivered, BookingStatusCompleted:
		return true
	}
	return false
}

type Booking struct {
	Base
	UUID                uuid.UUID        `db:"uuid"`
	TripID              uuid.UUID        `db:"trip_id"`
	SenderID            uuid.UUID        `db:"sender_id"`
	CarrierID           uuid.UUID        `db:"carrier_id"`
	PackageDescription  string           `db:"package_description"`
	Weight              decimal.Decimal  `db:"weight"`
	ProposedPrice       decimal.Decimal  `db:"proposed_price"`
	FinalPrice          *decimal.Decimal `db:"final_price"`
	Currency            string           `db:"currency"`
	PickupAddress       string           `db:"pickup_address"`
	DeliveryAddress     string           `db:"delivery_address"`
	SpecialInstructions *string          `db:"special_instructions"`
	PhotoURLs           []string         `db:"photo_urls"`
	Status              BookingStatus    `db:"status"`
	CancellationReason  *string          `db:"cancellation_reason"`
	CancellationDetails *string          `db:"cancellation_details"`
	Version             int              `db:"version"`
	ExpiresAt           time.Time        `db:"expires_at"`
}

func (b *Booking) IsParty(userID uuid.UUID) bool {
	return userID == b.SenderID || userID == b.CarrierID
}

// CounterpartOf returns the other party of the booking, or uuid.Nil for outsiders.
func (b *Booking) CounterpartOf(userID uuid.UUID) uuid.UUID {
	switch userID {
	case b.SenderID:
		return b.CarrierID
	case b.CarrierID:
		return b.SenderID
	}
	return uuid.Nil
}
