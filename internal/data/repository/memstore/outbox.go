package memstore

import (
	"context"
	"sort"
	"time"

	"courier-booking/internal/data/entity"
)

type outboxRepo struct{ h handle }

func (r *outboxRepo) Enqueue(_ context.Context, event *entity.OutboxEvent) error {
	st, done := r.h.acquire()
	defer done()

	for _, e := range st.outbox {
		if e.EventID == event.EventID {
			return nil
		}
	}
	if event.Status == "" {
		event.Status = entity.OutboxStatusPending
	}
	event.ID = st.nextID()
	st.outbox[event.ID] = *event
	return nil
}

func (r *outboxRepo) ListPending(_ context.Context, limit int) ([]*entity.OutboxEvent, error) {
	st, done := r.h.acquire()
	defer done()

	var out []*entity.OutboxEvent
	for _, e := range st.outbox {
		if e.Status == entity.OutboxStatusPending {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0), nil
}

func (r *outboxRepo) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	st, done := r.h.acquire()
	defer done()

	if e, ok := st.outbox[id]; ok {
		e.Status = entity.OutboxStatusSent
		e.SentAt = &sentAt
		e.Attempts++
		st.outbox[id] = e
	}
	return nil
}

func (r *outboxRepo) MarkFailed(_ context.Context, id int64, reason string) error {
	st, done := r.h.acquire()
	defer done()

	if e, ok := st.outbox[id]; ok {
		e.Attempts++
		e.LastError = &reason
		st.outbox[id] = e
	}
	return nil
}

func (r *outboxRepo) MarkDeadLettered(_ context.Context, id int64, reason string) error {
	st, done := r.h.acquire()
	defer done()

	if e, ok := st.outbox[id]; ok {
		e.Status = entity.OutboxStatusDeadLettered
		e.Attempts++
		e.LastError = &reason
		st.outbox[id] = e
	}
	return nil
}
