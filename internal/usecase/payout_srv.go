package usecase

import (
	"context"
	"strings"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/dto/response"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PayoutService interface {
	// EnsureAccount creates the user's connected account when none is live.
	EnsureAccount(ctx context.Context, userID uuid.UUID) (*entity.PayoutAccount, error)
	GetAccount(ctx context.Context, actor Actor) (*response.PayoutAccountResponse, error)
	CreateAccount(ctx context.Context, actor Actor) (*response.PayoutAccountResponse, error)
	CreateOnboardingLink(ctx context.Context, actor Actor) (*response.PayoutAccountResponse, error)
	RefreshStatus(ctx context.Context, actor Actor) (*response.PayoutAccountResponse, error)
	// SyncExternalAccount pulls the processor's view after an account webhook.
	SyncExternalAccount(ctx context.Context, externalID string) error
}

type payoutService struct {
	*engine
	log *zap.Logger
}

func NewPayoutService(e *engine) PayoutService {
	return &payoutService{
		engine: e,
		log:    e.log.With(zap.String("service", "payout")),
	}
}

// accountStatusFor maps processor capability flags onto our status.
func accountStatusFor(status *payment.AccountStatus, linkIssued bool) entity.PayoutAccountStatus {
	switch {
	case status.PayoutsEnabled && status.ChargesEnabled:
		return entity.PayoutAccountActive
	case strings.HasPrefix(status.DisabledReason, "rejected"):
		return entity.PayoutAccountRejected
	case status.DetailsSubmitted:
		return entity.PayoutAccountRestricted
	case linkIssued:
		return entity.PayoutAccountOnboarding
	default:
		return entity.PayoutAccountPending
	}
}

func (s *payoutService) EnsureAccount(ctx context.Context, userID uuid.UUID) (*entity.PayoutAccount, error) {
	existing, err := s.repo.PayoutAccount.FindLiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var email string
	if user, err := s.repo.User.FindByID(ctx, userID); err != nil {
		return nil, err
	} else if user != nil {
		email = user.Email
	}

	status, err := s.gateway.CreateConnectedAccount(ctx, payment.AccountRequest{
		UserID: userID.String(),
		Email:  email,
	})
	if err != nil {
		s.log.Warn("Create connected account failed", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, err
	}

	now := s.clock()
	account := &entity.PayoutAccount{
		Base:              entity.Base{CreatedAt: now, UpdatedAt: now},
		UserID:            userID,
		ExternalAccountID: status.AccountID,
		Status:            accountStatusFor(status, false),
		DetailsSubmitted:  status.DetailsSubmitted,
		ChargesEnabled:    status.ChargesEnabled,
		PayoutsEnabled:    status.PayoutsEnabled,
	}
	if err := s.repo.PayoutAccount.Create(ctx, account); err != nil {
		// lost a race with a concurrent creation
		if raced, findErr := s.repo.PayoutAccount.FindLiveByUserID(ctx, userID); findErr == nil && raced != nil {
			return raced, nil
		}
		return nil, err
	}

	s.log.Info("Payout account created",
		zap.String("user_id", userID.String()),
		zap.String("external_account_id", account.ExternalAccountID),
	)
	return account, nil
}

func (s *payoutService) liveAccount(ctx context.Context, userID uuid.UUID) (*entity.PayoutAccount, error) {
	account, err := s.repo.PayoutAccount.FindLiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.NotFound("no payout account for user %s", userID)
	}
	return account, nil
}

func (s *payoutService) GetAccount(ctx context.Context, actor Actor) (*response.PayoutAccountResponse, error) {
	account, err := s.liveAccount(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return response.PayoutAccountToResponse(account), nil
}

func (s *payoutService) CreateAccount(ctx context.Context, actor Actor) (*response.PayoutAccountResponse, error) {
	account, err := s.EnsureAccount(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return response.PayoutAccountToResponse(account), nil
}

func (s *payoutService) CreateOnboardingLink(ctx context.Context, actor Actor) (*response.PayoutAccountResponse, error) {
	account, err := s.EnsureAccount(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if account.Status == entity.PayoutAccountActive {
		return nil, apperror.InvalidState("payout account is already active")
	}

	url, err := s.gateway.CreateOnboardingLink(ctx, account.ExternalAccountID, s.config.Payment.RefreshURL, s.config.Payment.ReturnURL)
	if err != nil {
		return nil, err
	}

	account.OnboardingURL = &url
	if account.Status == entity.PayoutAccountPending {
		account.Status = entity.PayoutAccountOnboarding
	}
	account.UpdatedAt = s.clock()
	if err := s.repo.PayoutAccount.Update(ctx, account); err != nil {
		return nil, err
	}
	return response.PayoutAccountToResponse(account), nil
}

func (s *payoutService) refresh(ctx context.Context, account *entity.PayoutAccount) error {
	status, err := s.gateway.GetAccountStatus(ctx, account.ExternalAccountID)
	if err != nil {
		return err
	}

	previous := account.Status
	account.Status = accountStatusFor(status, account.OnboardingURL != nil)
	account.DetailsSubmitted = status.DetailsSubmitted
	account.ChargesEnabled = status.ChargesEnabled
	account.PayoutsEnabled = status.PayoutsEnabled
	account.UpdatedAt = s.clock()
	if err := s.repo.PayoutAccount.Update(ctx, account); err != nil {
		return err
	}

	if previous != account.Status {
		s.log.Info("Payout account status changed",
			zap.String("external_account_id", account.ExternalAccountID),
			zap.String("from", string(previous)),
			zap.String("to", string(account.Status)),
		)
	}
	return nil
}

func (s *payoutService) RefreshStatus(ctx context.Context, actor Actor) (*response.PayoutAccountResponse, error) {
	account, err := s.liveAccount(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, account); err != nil {
		return nil, err
	}
	return response.PayoutAccountToResponse(account), nil
}

func (s *payoutService) SyncExternalAccount(ctx context.Context, externalID string) error {
	account, err := s.repo.PayoutAccount.FindByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if account == nil {
		s.log.Warn("Webhook for unknown payout account", zap.String("external_account_id", externalID))
		return nil
	}
	return s.refresh(ctx, account)
}
