package repository

import (
	"context"
	"errors"
	"fmt"

	"courier-booking/internal/data/entity"
	"courier-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PayoutAccountRepository interface {
	Create(ctx context.Context, account *entity.PayoutAccount) error
	// FindLiveByUserID returns the user's non-rejected account, if any.
	FindLiveByUserID(ctx context.Context, userID uuid.UUID) (*entity.PayoutAccount, error)
	FindByExternalID(ctx context.Context, externalID string) (*entity.PayoutAccount, error)
	Update(ctx context.Context, account *entity.PayoutAccount) error
}

const payoutAccountColumns = `id, user_id, external_account_id, status, details_submitted, charges_enabled,
	payouts_enabled, onboarding_url, created_at, updated_at`

type payoutAccountRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPayoutAccountRepository(db database.Querier, log *zap.Logger) PayoutAccountRepository {
	return &payoutAccountRepository{
		db:  db,
		log: log.With(zap.String("repository", "payout_account")),
	}
}

func (r *payoutAccountRepository) Create(ctx context.Context, account *entity.PayoutAccount) error {
	query := `
		INSERT INTO payout_accounts (user_id, external_account_id, status, details_submitted,
			charges_enabled, payouts_enabled, onboarding_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		account.UserID,
		account.ExternalAccountID,
		account.Status,
		account.DetailsSubmitted,
		account.ChargesEnabled,
		account.PayoutsEnabled,
		account.OnboardingURL,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID)
	if err != nil {
		r.log.Error("Failed to create payout account",
			zap.Error(err),
			zap.String("user_id", account.UserID.String()),
		)
		return fmt.Errorf("create payout account for %s: %w", account.UserID, err)
	}
	return nil
}

func (r *payoutAccountRepository) findOne(ctx context.Context, query string, arg any) (*entity.PayoutAccount, error) {
	var a entity.PayoutAccount
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.UserID,
		&a.ExternalAccountID,
		&a.Status,
		&a.DetailsSubmitted,
		&a.ChargesEnabled,
		&a.PayoutsEnabled,
		&a.OnboardingURL,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payout account", zap.Error(err), zap.Any("key", arg))
		return nil, fmt.Errorf("find payout account %v: %w", arg, err)
	}
	return &a, nil
}

func (r *payoutAccountRepository) FindLiveByUserID(ctx context.Context, userID uuid.UUID) (*entity.PayoutAccount, error) {
	query := `SELECT ` + payoutAccountColumns + ` FROM payout_accounts WHERE user_id = $1 AND status <> 'rejected'`
	return r.findOne(ctx, query, userID)
}

func (r *payoutAccountRepository) FindByExternalID(ctx context.Context, externalID string) (*entity.PayoutAccount, error) {
	query := `SELECT ` + payoutAccountColumns + ` FROM payout_accounts WHERE external_account_id = $1`
	return r.findOne(ctx, query, externalID)
}

func (r *payoutAccountRepository) Update(ctx context.Context, account *entity.PayoutAccount) error {
	query := `
		UPDATE payout_accounts
		SET status = $2, details_submitted = $3, charges_enabled = $4, payouts_enabled = $5,
		    onboarding_url = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		account.ID,
		account.Status,
		account.DetailsSubmitted,
		account.ChargesEnabled,
		account.PayoutsEnabled,
		account.OnboardingURL,
		account.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update payout account",
			zap.Error(err),
			zap.Int64("payout_account_id", account.ID),
		)
		return fmt.Errorf("update payout account %d: %w", account.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("payout account %d not found", account.ID)
	}
	return nil
}
