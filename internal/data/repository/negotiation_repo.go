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

type NegotiationRepository interface {
	Create(ctx context.Context, negotiation *entity.Negotiation) error
	FindByID(ctx context.Context, id int64) (*entity.Negotiation, error)
	FindByBookingID(ctx context.Context, bookingID int64) ([]*entity.Negotiation, error)
	FindAcceptedByBookingID(ctx context.Context, bookingID int64) (*entity.Negotiation, error)
	MarkAccepted(ctx context.Context, id int64) error
}

const negotiationColumns = `id, booking_id, proposer_id, amount, message, is_accepted, created_at`

type negotiationRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewNegotiationRepository(db database.Querier, log *zap.Logger) NegotiationRepository {
	return &negotiationRepository{
		db:  db,
		log: log.With(zap.String("repository", "negotiation")),
	}
}

func scanNegotiation(row pgx.Row) (*entity.Negotiation, error) {
	var n entity.Negotiation
	if err := row.Scan(&n.ID, &n.BookingID, &n.ProposerID, &n.Amount, &n.Message, &n.IsAccepted, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *negotiationRepository) Create(ctx context.Context, negotiation *entity.Negotiation) error {
	query := `
		INSERT INTO negotiations (booking_id, proposer_id, amount, message, is_accepted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		negotiation.BookingID,
		negotiation.ProposerID,
		negotiation.Amount,
		negotiation.Message,
		negotiation.IsAccepted,
		negotiation.CreatedAt,
	).Scan(&negotiation.ID)
	if err != nil {
		r.log.Error("Failed to create negotiation",
			zap.Error(err),
			zap.Int64("booking_id", negotiation.BookingID),
		)
		return fmt.Errorf("create negotiation for booking %d: %w", negotiation.BookingID, err)
	}

	return nil
}

func (r *negotiationRepository) FindByID(ctx context.Context, id int64) (*entity.Negotiation, error) {
	n, err := scanNegotiation(r.db.QueryRow(ctx, `SELECT `+negotiationColumns+` FROM negotiations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find negotiation by ID", zap.Error(err), zap.Int64("negotiation_id", id))
		return nil, fmt.Errorf("find negotiation by ID %d: %w", id, err)
	}
	return n, nil
}

func (r *negotiationRepository) FindByBookingID(ctx context.Context, bookingID int64) ([]*entity.Negotiation, error) {
	query := `SELECT ` + negotiationColumns + ` FROM negotiations WHERE booking_id = $1 ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find negotiations by booking ID", zap.Error(err), zap.Int64("booking_id", bookingID))
		return nil, fmt.Errorf("find negotiations by booking ID %d: %w", bookingID, err)
	}
	defer rows.Close()

	var negotiations []*entity.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan negotiation row: %w", err)
		}
		negotiations = append(negotiations, n)
	}
	return negotiations, rows.Err()
}

func (r *negotiationRepository) FindAcceptedByBookingID(ctx context.Context, bookingID int64) (*entity.Negotiation, error) {
	query := `SELECT ` + negotiationColumns + ` FROM negotiations WHERE booking_id = $1 AND is_accepted`

	n, err := scanNegotiation(r.db.QueryRow(ctx, query, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find accepted negotiation", zap.Error(err), zap.Int64("booking_id", bookingID))
		return nil, fmt.Errorf("find accepted negotiation for booking %d: %w", bookingID, err)
	}
	return n, nil
}

func (r *negotiationRepository) MarkAccepted(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `UPDATE negotiations SET is_accepted = TRUE WHERE id = $1 AND NOT is_accepted`, id)
	if err != nil {
		r.log.Error("Failed to accept negotiation", zap.Error(err), zap.Int64("negotiation_id", id))
		return fmt.Errorf("accept negotiation %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("accept negotiation %d: %w", id, ErrVersionConflict)
	}
	return nil
}
