package repository

import (
	"context"
	"fmt"

	"courier-booking/internal/data/entity"
	"courier-booking/pkg/database"

	"go.uber.org/zap"
)

type AuditRepository interface {
	// Append assigns the next per-booking sequence number. Callers must hold
	// the booking row lock.
	Append(ctx context.Context, entry *entity.BookingAudit) error
	FindByBookingID(ctx context.Context, bookingID int64) ([]*entity.BookingAudit, error)
}

type auditRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewAuditRepository(db database.Querier, log *zap.Logger) AuditRepository {
	return &auditRepository{
		db:  db,
		log: log.With(zap.String("repository", "audit")),
	}
}

func (r *auditRepository) Append(ctx context.Context, entry *entity.BookingAudit) error {
	query := `
		INSERT INTO booking_audit (booking_id, seq, from_status, to_status, actor_id, actor_role, reason, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6, $7
		FROM booking_audit
		WHERE booking_id = $1
		RETURNING id, seq
	`

	err := r.db.QueryRow(ctx, query,
		entry.BookingID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		entry.ActorRole,
		entry.Reason,
		entry.CreatedAt,
	).Scan(&entry.ID, &entry.Seq)
	if err != nil {
		r.log.Error("Failed to append audit entry",
			zap.Error(err),
			zap.Int64("booking_id", entry.BookingID),
			zap.String("to_status", string(entry.ToStatus)),
		)
		return fmt.Errorf("append audit for booking %d: %w", entry.BookingID, err)
	}
	return nil
}

func (r *auditRepository) FindByBookingID(ctx context.Context, bookingID int64) ([]*entity.BookingAudit, error) {
	query := `
		SELECT id, booking_id, seq, from_status, to_status, actor_id, actor_role, reason, created_at
		FROM booking_audit
		WHERE booking_id = $1
		ORDER BY seq
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to list audit entries", zap.Error(err), zap.Int64("booking_id", bookingID))
		return nil, fmt.Errorf("list audit for booking %d: %w", bookingID, err)
	}
	defer rows.Close()

	var entries []*entity.BookingAudit
	for rows.Next() {
		var e entity.BookingAudit
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Seq, &e.FromStatus, &e.ToStatus,
			&e.ActorID, &e.ActorRole, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
