package repository

import (
	"context"
	"fmt"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/pkg/database"

	"go.uber.org/zap"
)

type OutboxRepository interface {
	// Enqueue is a no-op when the event id was already staged.
	Enqueue(ctx context.Context, event *entity.OutboxEvent) error
	ListPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	// MarkDeadLettered records the final failure and takes the event out of
	// the pending set.
	MarkDeadLettered(ctx context.Context, id int64, reason string) error
}

type outboxRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewOutboxRepository(db database.Querier, log *zap.Logger) OutboxRepository {
	return &outboxRepository{
		db:  db,
		log: log.With(zap.String("repository", "outbox")),
	}
}

func (r *outboxRepository) Enqueue(ctx context.Context, event *entity.OutboxEvent) error {
	query := `
		INSERT INTO settlement_outbox (event_id, event_type, booking_id, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`

	if event.Status == "" {
		event.Status = entity.OutboxStatusPending
	}

	_, err := r.db.Exec(ctx, query,
		event.EventID,
		event.EventType,
		event.BookingID,
		event.Payload,
		event.Status,
		event.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to enqueue outbox event",
			zap.Error(err),
			zap.String("event_type", event.EventType),
			zap.Int64("booking_id", event.BookingID),
		)
		return fmt.Errorf("enqueue %s event: %w", event.EventType, err)
	}
	return nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT id, event_id, event_type, booking_id, payload, status, attempts, last_error, created_at, sent_at
		FROM settlement_outbox
		WHERE status = 'pending'
		ORDER BY id
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.Error("Failed to list pending outbox events", zap.Error(err))
		return nil, fmt.Errorf("list pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []*entity.OutboxEvent
	for rows.Next() {
		var e entity.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.BookingID, &e.Payload,
			&e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `UPDATE settlement_outbox SET status = 'sent', sent_at = $2, attempts = attempts + 1 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, sentAt); err != nil {
		r.log.Error("Failed to mark outbox event sent", zap.Error(err), zap.Int64("outbox_id", id))
		return fmt.Errorf("mark outbox event %d sent: %w", id, err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `UPDATE settlement_outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, reason); err != nil {
		r.log.Error("Failed to record outbox failure", zap.Error(err), zap.Int64("outbox_id", id))
		return fmt.Errorf("mark outbox event %d failed: %w", id, err)
	}
	return nil
}

func (r *outboxRepository) MarkDeadLettered(ctx context.Context, id int64, reason string) error {
	query := `UPDATE settlement_outbox SET status = 'dead_lettered', attempts = attempts + 1, last_error = $2 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, reason); err != nil {
		r.log.Error("Failed to dead-letter outbox event", zap.Error(err), zap.Int64("outbox_id", id))
		return fmt.Errorf("dead-letter outbox event %d: %w", id, err)
	}
	return nil
}
