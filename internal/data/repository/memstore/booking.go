package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type bookingRepo struct{ h handle }

func (r *bookingRepo) Create(_ context.Context, booking *entity.Booking) error {
	st, done := r.h.acquire()
	defer done()

	for _, b := range st.bookings {
		if b.UUID == booking.UUID {
			return fmt.Errorf("create booking %s: duplicate uuid", booking.UUID)
		}
	}
	if booking.Version == 0 {
		booking.Version = 1
	}
	if booking.PhotoURLs == nil {
		booking.PhotoURLs = []string{}
	}
	booking.ID = st.nextID()
	st.bookings[booking.ID] = *booking
	return nil
}

func (r *bookingRepo) FindByID(_ context.Context, id int64) (*entity.Booking, error) {
	st, done := r.h.acquire()
	defer done()

	b, ok := st.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *bookingRepo) FindByIDForUpdate(ctx context.Context, id int64) (*entity.Booking, error) {
	return r.FindByID(ctx, id)
}

func (r *bookingRepo) FindByUUID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	st, done := r.h.acquire()
	defer done()

	for _, b := range st.bookings {
		if b.UUID == id {
			return &b, nil
		}
	}
	return nil, nil
}

func (r *bookingRepo) filter(match func(b *entity.Booking) bool) []*entity.Booking {
	st, done := r.h.acquire()
	defer done()

	var out []*entity.Booking
	for _, b := range st.bookings {
		if match(&b) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (r *bookingRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return page(r.filter(func(b *entity.Booking) bool { return b.IsParty(userID) }), limit, offset), nil
}

func (r *bookingRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(b *entity.Booking) bool { return b.IsParty(userID) }))), nil
}

func (r *bookingRepo) FindByTripID(_ context.Context, tripID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return page(r.filter(func(b *entity.Booking) bool { return b.TripID == tripID }), limit, offset), nil
}

func (r *bookingRepo) CountByTripID(_ context.Context, tripID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(b *entity.Booking) bool { return b.TripID == tripID }))), nil
}

func (r *bookingRepo) Update(_ context.Context, booking *entity.Booking) error {
	st, done := r.h.acquire()
	defer done()

	current, ok := st.bookings[booking.ID]
	if !ok || current.Version != booking.Version {
		return fmt.Errorf("update booking %d at version %d: %w", booking.ID, booking.Version, repository.ErrVersionConflict)
	}

	current.FinalPrice = booking.FinalPrice
	current.Status = booking.Status
	current.CancellationReason = booking.CancellationReason
	current.CancellationDetails = booking.CancellationDetails
	current.ExpiresAt = booking.ExpiresAt
	current.UpdatedAt = booking.UpdatedAt
	current.Version++
	st.bookings[booking.ID] = current

	booking.Version++
	return nil
}

func (r *bookingRepo) FindExpiredPendingIDs(_ context.Context, now time.Time, limit int) ([]int64, error) {
	st, done := r.h.acquire()
	defer done()

	var expired []entity.Booking
	for _, b := range st.bookings {
		if b.Status == entity.BookingStatusPending && b.ExpiresAt.Before(now) {
			expired = append(expired, b)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })

	ids := make([]int64, 0, len(expired))
	for _, b := range page(expired, limit, 0) {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (r *bookingRepo) CompletedHistoryBySender(_ context.Context, senderID uuid.UUID, since time.Time) (entity.RequesterHistory, error) {
	st, done := r.h.acquire()
	defer done()

	history := entity.RequesterHistory{CompletedVolume: decimal.Zero}
	for _, b := range st.bookings {
		if b.SenderID != senderID || b.Status != entity.BookingStatusCompleted || b.UpdatedAt.Before(since) {
			continue
		}
		history.CompletedBookings++
		if b.FinalPrice != nil {
			history.CompletedVolume = history.CompletedVolume.Add(*b.FinalPrice)
		}
	}
	return history, nil
}
