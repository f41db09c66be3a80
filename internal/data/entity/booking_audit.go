package entity

import (
	"github.com/google/uuid"
)

// BookingAudit is one append-only status transition record.
type BookingAudit struct {
	BaseSimple
	BookingID  int64         `db:"booking_id"`
	Seq        int64         `db:"seq"`
	FromStatus BookingStatus `db:"from_status"`
	ToStatus   BookingStatus `db:"to_status"`
	ActorID    uuid.UUID     `db:"actor_id"`
	ActorRole  string        `db:"actor_role"`
	Reason     string        `db:"reason"`
}
