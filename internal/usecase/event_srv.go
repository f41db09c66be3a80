package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
	"courier-booking/pkg/eventbus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventService relays staged settlement events to the publisher after the
// transitions that produced them have committed.
type EventService interface {
	// Relay publishes one batch and returns how many events went out.
	Relay(ctx context.Context) (int, error)
	// Run relays on every tick until ctx is done.
	Run(ctx context.Context, interval time.Duration) error
}

type eventService struct {
	*engine
	publisher eventbus.Publisher
	log       *zap.Logger
}

func NewEventService(e *engine, publisher eventbus.Publisher) EventService {
	return &eventService{
		engine:    e,
		publisher: publisher,
		log:       e.log.With(zap.String("service", "event_relay")),
	}
}

// eventID is stable for (booking, type, discriminator) so consumers can
// de-duplicate redelivered messages.
func eventID(b *entity.Booking, eventType, discriminator string) uuid.UUID {
	return uuid.NewSHA1(b.UUID, []byte(eventType+"/"+discriminator))
}

// stage writes an event to the outbox inside the caller's transaction.
func (e *engine) stage(ctx context.Context, tx *repository.Repository, b *entity.Booking, eventType string, actor Actor, discriminator string, amounts *eventbus.Amounts) error {
	counterpart := b.CounterpartOf(actor.ID)
	if counterpart == uuid.Nil {
		counterpart = b.SenderID
	}

	event := eventbus.Event{
		EventID:       eventID(b, eventType, discriminator),
		Type:          eventType,
		BookingID:     b.UUID,
		ActorID:       actor.ID,
		CounterpartID: counterpart,
		Amounts:       amounts,
		OccurredAt:    e.clock(),
	}

	trip, err := tx.Trip.FindByID(ctx, b.TripID)
	if err != nil {
		e.log.Warn("Trip lookup failed, event goes out without route",
			zap.Error(err),
			zap.String("trip_id", b.TripID.String()),
		)
	} else if trip != nil {
		event.Route = trip.Route()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	return tx.Outbox.Enqueue(ctx, &entity.OutboxEvent{
		BaseSimple: entity.BaseSimple{CreatedAt: event.OccurredAt},
		EventID:    event.EventID,
		EventType:  eventType,
		BookingID:  b.ID,
		Payload:    payload,
		Status:     entity.OutboxStatusPending,
	})
}

func (s *eventService) batchSize() int {
	if s.config != nil && s.config.Events.BatchSize > 0 {
		return s.config.Events.BatchSize
	}
	return 100
}

func (s *eventService) maxAttempts() int {
	if s.config != nil && s.config.Events.MaxAttempts > 0 {
		return s.config.Events.MaxAttempts
	}
	return 10
}

// Relay publishes the pending batch in order. A failed event holds back the
// later events of its own booking only; events of other bookings still go
// out. Once an event reaches maxAttempts it is dead-lettered.
func (s *eventService) Relay(ctx context.Context) (int, error) {
	pending, err := s.repo.Outbox.ListPending(ctx, s.batchSize())
	if err != nil {
		return 0, err
	}

	sent := 0
	var firstErr error
	blocked := make(map[int64]bool)
	for _, ev := range pending {
		if blocked[ev.BookingID] {
			continue
		}

		var envelope struct {
			BookingID string `json:"booking_id"`
		}
		_ = json.Unmarshal(ev.Payload, &envelope)

		if err := s.publisher.Publish(ctx, ev.EventType, ev.Payload, envelope.BookingID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("publish %s: %w", ev.EventType, err)
			}
			s.recordFailure(ctx, ev, err)
			blocked[ev.BookingID] = true
			continue
		}

		if err := s.repo.Outbox.MarkSent(ctx, ev.ID, s.clock()); err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		s.log.Debug("Relayed settlement events", zap.Int("count", sent))
	}
	return sent, firstErr
}

func (s *eventService) recordFailure(ctx context.Context, ev *entity.OutboxEvent, cause error) {
	attempts := ev.Attempts + 1
	fields := []zap.Field{
		zap.Error(cause),
		zap.String("event_id", ev.EventID.String()),
		zap.String("event_type", ev.EventType),
		zap.Int64("booking_id", ev.BookingID),
		zap.Int("attempts", attempts),
	}

	if attempts >= s.maxAttempts() {
		s.log.Error("Publish attempts exhausted, event dead-lettered", fields...)
		if err := s.repo.Outbox.MarkDeadLettered(ctx, ev.ID, cause.Error()); err != nil {
			s.log.Error("Failed to dead-letter event", zap.Error(err))
		}
		return
	}

	s.log.Warn("Publish failed, will retry", fields...)
	if err := s.repo.Outbox.MarkFailed(ctx, ev.ID, cause.Error()); err != nil {
		s.log.Error("Failed to record publish failure", zap.Error(err))
	}
}

func (s *eventService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Event relay started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Event relay stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Relay(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("Relay cycle failed", zap.Error(err))
			}
		}
	}
}
