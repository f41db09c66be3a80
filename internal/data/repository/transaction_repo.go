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

type TransactionRepository interface {
	Create(ctx context.Context, txn *entity.Transaction) error
	FindByID(ctx context.Context, id int64) (*entity.Transaction, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*entity.Transaction, error)
	FindByIntentID(ctx context.Context, intentID string) (*entity.Transaction, error)
	FindByBookingID(ctx context.Context, bookingID int64) ([]*entity.Transaction, error)
	// FindLiveByBookingID returns the one non-failed, non-cancelled transaction, if any.
	FindLiveByBookingID(ctx context.Context, bookingID int64) (*entity.Transaction, error)
	Update(ctx context.Context, txn *entity.Transaction) error
}

const transactionColumns = `id, booking_id, payment_intent_id, gross_amount, commission_amount, carrier_amount,
	commission_rate, currency, status, payment_method, refund_id, refunded_amount, failure_reason,
	processed_at, created_at, updated_at`

type transactionRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTransactionRepository(db database.Querier, log *zap.Logger) TransactionRepository {
	return &transactionRepository{
		db:  db,
		log: log.With(zap.String("repository", "transaction")),
	}
}

func scanTransaction(row pgx.Row) (*entity.Transaction, error) {
	var t entity.Transaction
	err := row.Scan(
		&t.ID,
		&t.BookingID,
		&t.PaymentIntentID,
		&t.GrossAmount,
		&t.CommissionAmount,
		&t.CarrierAmount,
		&t.CommissionRate,
		&t.Currency,
		&t.Status,
		&t.PaymentMethod,
		&t.RefundID,
		&t.RefundedAmount,
		&t.FailureReason,
		&t.ProcessedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepository) Create(ctx context.Context, txn *entity.Transaction) error {
	query := `
		INSERT INTO transactions (booking_id, payment_intent_id, gross_amount, commission_amount, carrier_amount,
			commission_rate, currency, status, payment_method, refunded_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		txn.BookingID,
		txn.PaymentIntentID,
		txn.GrossAmount,
		txn.CommissionAmount,
		txn.CarrierAmount,
		txn.CommissionRate,
		txn.Currency,
		txn.Status,
		txn.PaymentMethod,
		txn.RefundedAmount,
		txn.CreatedAt,
		txn.UpdatedAt,
	).Scan(&txn.ID)
	if err != nil {
		r.log.Error("Failed to create transaction",
			zap.Error(err),
			zap.Int64("booking_id", txn.BookingID),
			zap.String("payment_intent_id", txn.PaymentIntentID),
		)
		return fmt.Errorf("create transaction for booking %d: %w", txn.BookingID, err)
	}
	return nil
}

func (r *transactionRepository) findOne(ctx context.Context, query string, arg any) (*entity.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find transaction", zap.Error(err), zap.Any("key", arg))
		return nil, fmt.Errorf("find transaction %v: %w", arg, err)
	}
	return t, nil
}

func (r *transactionRepository) FindByID(ctx context.Context, id int64) (*entity.Transaction, error) {
	return r.findOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *transactionRepository) FindByIDForUpdate(ctx context.Context, id int64) (*entity.Transaction, error) {
	return r.findOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *transactionRepository) FindByIntentID(ctx context.Context, intentID string) (*entity.Transaction, error) {
	return r.findOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE payment_intent_id = $1`, intentID)
}

func (r *transactionRepository) FindLiveByBookingID(ctx context.Context, bookingID int64) (*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE booking_id = $1 AND status NOT IN ('failed', 'cancelled')
		ORDER BY id DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, bookingID)
}

func (r *transactionRepository) FindByBookingID(ctx context.Context, bookingID int64) ([]*entity.Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE booking_id = $1 ORDER BY id`, bookingID)
	if err != nil {
		r.log.Error("Failed to find transactions by booking ID", zap.Error(err), zap.Int64("booking_id", bookingID))
		return nil, fmt.Errorf("find transactions by booking ID %d: %w", bookingID, err)
	}
	defer rows.Close()

	var txns []*entity.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *transactionRepository) Update(ctx context.Context, txn *entity.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2, payment_method = $3, refund_id = $4, refunded_amount = $5,
		    failure_reason = $6, processed_at = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		txn.ID,
		txn.Status,
		txn.PaymentMethod,
		txn.RefundID,
		txn.RefundedAmount,
		txn.FailureReason,
		txn.ProcessedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update transaction",
			zap.Error(err),
			zap.Int64("transaction_id", txn.ID),
			zap.String("status", string(txn.Status)),
		)
		return fmt.Errorf("update transaction %d: %w", txn.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d not found", txn.ID)
	}
	return nil
}
