package entity

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	// dead_lettered events exhausted their publish attempts and are no
	// longer relayed
	OutboxStatusDeadLettered OutboxStatus = "dead_lettered"
)

type OutboxEvent struct {
	BaseSimple
	EventID   uuid.UUID    `db:"event_id"`
	EventType string       `db:"event_type"`
	BookingID int64        `db:"booking_id"`
	Payload   []byte       `db:"payload"`
	Status    OutboxStatus `db:"status"`
	Attempts  int          `db:"attempts"`
	LastError *string      `db:"last_error"`
	SentAt    *time.Time   `db:"sent_at"`
}
