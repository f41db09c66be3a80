package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trip is the read-only view of a published trip.
type Trip struct {
	ID              uuid.UUID       `db:"id"`
	TravelerID      uuid.UUID       `db:"traveler_id"`
	Origin          string          `db:"origin"`
	Destination     string          `db:"destination"`
	DepartureDate   time.Time       `db:"departure_date"`
	AvailableWeight decimal.Decimal `db:"available_weight"`
	Status          string          `db:"status"`
}

func (t *Trip) Route() string {
	return fmt.Sprintf("%s → %s (%s)", t.Origin, t.Destination, t.DepartureDate.Format("2006-01-02"))
}
