package repository

import (
	"context"
	"errors"
	"fmt"

	"courier-booking/internal/data/entity"
	"courier-booking/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type EscrowRepository interface {
	Create(ctx context.Context, record *entity.EscrowRecord) error
	FindByTransactionID(ctx context.Context, transactionID int64) (*entity.EscrowRecord, error)
	FindByTransactionIDForUpdate(ctx context.Context, transactionID int64) (*entity.EscrowRecord, error)
	Update(ctx context.Context, record *entity.EscrowRecord) error
}

const escrowColumns = `id, transaction_id, amount_held, amount_released, status, hold_reason, transfer_id,
	released_at, release_notes, created_at, updated_at`

type escrowRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewEscrowRepository(db database.Querier, log *zap.Logger) EscrowRepository {
	return &escrowRepository{
		db:  db,
		log: log.With(zap.String("repository", "escrow")),
	}
}

func (r *escrowRepository) Create(ctx context.Context, record *entity.EscrowRecord) error {
	query := `
		INSERT INTO escrow_records (transaction_id, amount_held, amount_released, status, hold_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		record.TransactionID,
		record.AmountHeld,
		record.AmountReleased,
		record.Status,
		record.HoldReason,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.ID)
	if err != nil {
		r.log.Error("Failed to create escrow record",
			zap.Error(err),
			zap.Int64("transaction_id", record.TransactionID),
		)
		return fmt.Errorf("create escrow record for transaction %d: %w", record.TransactionID, err)
	}
	return nil
}

func (r *escrowRepository) find(ctx context.Context, query string, transactionID int64) (*entity.EscrowRecord, error) {
	var e entity.EscrowRecord
	err := r.db.QueryRow(ctx, query, transactionID).Scan(
		&e.ID,
		&e.TransactionID,
		&e.AmountHeld,
		&e.AmountReleased,
		&e.Status,
		&e.HoldReason,
		&e.TransferID,
		&e.ReleasedAt,
		&e.ReleaseNotes,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find escrow record",
			zap.Error(err),
			zap.Int64("transaction_id", transactionID),
		)
		return nil, fmt.Errorf("find escrow record for transaction %d: %w", transactionID, err)
	}
	return &e, nil
}

func (r *escrowRepository) FindByTransactionID(ctx context.Context, transactionID int64) (*entity.EscrowRecord, error) {
	return r.find(ctx, `SELECT `+escrowColumns+` FROM escrow_records WHERE transaction_id = $1`, transactionID)
}

func (r *escrowRepository) FindByTransactionIDForUpdate(ctx context.Context, transactionID int64) (*entity.EscrowRecord, error) {
	return r.find(ctx, `SELECT `+escrowColumns+` FROM escrow_records WHERE transaction_id = $1 FOR UPDATE`, transactionID)
}

func (r *escrowRepository) Update(ctx context.Context, record *entity.EscrowRecord) error {
	// the CHECK constraint on amount_released backs the service-level guard
	query := `
		UPDATE escrow_records
		SET amount_released = $2, status = $3, transfer_id = $4, released_at = $5,
		    release_notes = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		record.ID,
		record.AmountReleased,
		record.Status,
		record.TransferID,
		record.ReleasedAt,
		record.ReleaseNotes,
		record.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update escrow record",
			zap.Error(err),
			zap.Int64("escrow_id", record.ID),
		)
		return fmt.Errorf("update escrow record %d: %w", record.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("escrow record %d not found", record.ID)
	}
	return nil
}
