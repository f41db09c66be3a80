package memstore

import (
	"context"
	"sort"

	"courier-booking/internal/data/entity"
)

type auditRepo struct{ h handle }

func (r *auditRepo) Append(_ context.Context, entry *entity.BookingAudit) error {
	st, done := r.h.acquire()
	defer done()

	var last int64
	for _, a := range st.audits {
		if a.BookingID == entry.BookingID && a.Seq > last {
			last = a.Seq
		}
	}
	entry.ID = st.nextID()
	entry.Seq = last + 1
	st.audits[entry.ID] = *entry
	return nil
}

func (r *auditRepo) FindByBookingID(_ context.Context, bookingID int64) ([]*entity.BookingAudit, error) {
	st, done := r.h.acquire()
	defer done()

	var out []*entity.BookingAudit
	for _, a := range st.audits {
		if a.BookingID == bookingID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
