package memstore

import (
	"context"
	"fmt"

	"courier-booking/internal/data/entity"

	"github.com/google/uuid"
)

type payoutAccountRepo struct{ h handle }

func (r *payoutAccountRepo) Create(_ context.Context, account *entity.PayoutAccount) error {
	st, done := r.h.acquire()
	defer done()

	for _, a := range st.payoutAccounts {
		if a.ExternalAccountID == account.ExternalAccountID {
			return fmt.Errorf("create payout account: duplicate external id %s", account.ExternalAccountID)
		}
		if a.UserID == account.UserID && a.Status != entity.PayoutAccountRejected {
			return fmt.Errorf("create payout account: user %s already has account %d", account.UserID, a.ID)
		}
	}
	account.ID = st.nextID()
	st.payoutAccounts[account.ID] = *account
	return nil
}

func (r *payoutAccountRepo) FindLiveByUserID(_ context.Context, userID uuid.UUID) (*entity.PayoutAccount, error) {
	st, done := r.h.acquire()
	defer done()

	for _, a := range st.payoutAccounts {
		if a.UserID == userID && a.Status != entity.PayoutAccountRejected {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *payoutAccountRepo) FindByExternalID(_ context.Context, externalID string) (*entity.PayoutAccount, error) {
	st, done := r.h.acquire()
	defer done()

	for _, a := range st.payoutAccounts {
		if a.ExternalAccountID == externalID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *payoutAccountRepo) Update(_ context.Context, account *entity.PayoutAccount) error {
	st, done := r.h.acquire()
	defer done()

	current, ok := st.payoutAccounts[account.ID]
	if !ok {
		return fmt.Errorf("payout account %d not found", account.ID)
	}
	current.Status = account.Status
	current.DetailsSubmitted = account.DetailsSubmitted
	current.ChargesEnabled = account.ChargesEnabled
	current.PayoutsEnabled = account.PayoutsEnabled
	current.OnboardingURL = account.OnboardingURL
	current.UpdatedAt = account.UpdatedAt
	st.payoutAccounts[account.ID] = current
	return nil
}
