package memstore

import (
	"context"
	"fmt"
	"sort"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
)

type negotiationRepo struct{ h handle }

func (r *negotiationRepo) Create(_ context.Context, negotiation *entity.Negotiation) error {
	st, done := r.h.acquire()
	defer done()

	if _, ok := st.bookings[negotiation.BookingID]; !ok {
		return fmt.Errorf("create negotiation: booking %d does not exist", negotiation.BookingID)
	}
	if negotiation.IsAccepted && hasAccepted(st, negotiation.BookingID) {
		return fmt.Errorf("create negotiation for booking %d: %w", negotiation.BookingID, repository.ErrVersionConflict)
	}
	negotiation.ID = st.nextID()
	st.negotiations[negotiation.ID] = *negotiation
	return nil
}

func hasAccepted(st *state, bookingID int64) bool {
	for _, n := range st.negotiations {
		if n.BookingID == bookingID && n.IsAccepted {
			return true
		}
	}
	return false
}

func (r *negotiationRepo) FindByID(_ context.Context, id int64) (*entity.Negotiation, error) {
	st, done := r.h.acquire()
	defer done()

	n, ok := st.negotiations[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *negotiationRepo) FindByBookingID(_ context.Context, bookingID int64) ([]*entity.Negotiation, error) {
	st, done := r.h.acquire()
	defer done()

	var out []*entity.Negotiation
	for _, n := range st.negotiations {
		if n.BookingID == bookingID {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *negotiationRepo) FindAcceptedByBookingID(_ context.Context, bookingID int64) (*entity.Negotiation, error) {
	st, done := r.h.acquire()
	defer done()

	for _, n := range st.negotiations {
		if n.BookingID == bookingID && n.IsAccepted {
			return &n, nil
		}
	}
	return nil, nil
}

func (r *negotiationRepo) MarkAccepted(_ context.Context, id int64) error {
	st, done := r.h.acquire()
	defer done()

	n, ok := st.negotiations[id]
	if !ok || n.IsAccepted || hasAccepted(st, n.BookingID) {
		return fmt.Errorf("accept negotiation %d: %w", id, repository.ErrVersionConflict)
	}
	n.IsAccepted = true
	st.negotiations[id] = n
	return nil
}
