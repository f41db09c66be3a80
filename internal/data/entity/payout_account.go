package entity

import (
	"github.com/google/uuid"
)

type PayoutAccountStatus string

const (
	PayoutAccountPending    PayoutAccountStatus = "pending"
	PayoutAccountOnboarding PayoutAccountStatus = "onboarding"
	PayoutAccountActive     PayoutAccountStatus = "active"
	PayoutAccountRestricted PayoutAccountStatus = "restricted"
	PayoutAccountRejected   PayoutAccountStatus = "rejected"
)

// PayoutAccount is a carrier's connected account at the payment processor.
type PayoutAccount struct {
	Base
	UserID            uuid.UUID           `db:"user_id"`
	ExternalAccountID string              `db:"external_account_id"`
	Status            PayoutAccountStatus `db:"status"`
	DetailsSubmitted  bool                `db:"details_submitted"`
	ChargesEnabled    bool                `db:"charges_enabled"`
	PayoutsEnabled    bool                `db:"payouts_enabled"`
	OnboardingURL     *string             `db:"onboarding_url"`
}
