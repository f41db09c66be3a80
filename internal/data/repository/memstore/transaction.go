package memstore

import (
	"context"
	"fmt"
	"sort"

	"courier-booking/internal/data/entity"
)

type transactionRepo struct{ h handle }

func (r *transactionRepo) Create(_ context.Context, txn *entity.Transaction) error {
	st, done := r.h.acquire()
	defer done()

	for _, t := range st.transactions {
		if t.PaymentIntentID == txn.PaymentIntentID {
			return fmt.Errorf("create transaction: duplicate payment intent %s", txn.PaymentIntentID)
		}
		if t.BookingID == txn.BookingID && t.Status.IsLive() && txn.Status.IsLive() {
			return fmt.Errorf("create transaction: booking %d already has live transaction %d", txn.BookingID, t.ID)
		}
	}
	txn.ID = st.nextID()
	st.transactions[txn.ID] = *txn
	return nil
}

func (r *transactionRepo) FindByID(_ context.Context, id int64) (*entity.Transaction, error) {
	st, done := r.h.acquire()
	defer done()

	t, ok := st.transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *transactionRepo) FindByIDForUpdate(ctx context.Context, id int64) (*entity.Transaction, error) {
	return r.FindByID(ctx, id)
}

func (r *transactionRepo) FindByIntentID(_ context.Context, intentID string) (*entity.Transaction, error) {
	st, done := r.h.acquire()
	defer done()

	for _, t := range st.transactions {
		if t.PaymentIntentID == intentID {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *transactionRepo) FindByBookingID(_ context.Context, bookingID int64) ([]*entity.Transaction, error) {
	st, done := r.h.acquire()
	defer done()

	var out []*entity.Transaction
	for _, t := range st.transactions {
		if t.BookingID == bookingID {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *transactionRepo) FindLiveByBookingID(ctx context.Context, bookingID int64) (*entity.Transaction, error) {
	txns, _ := r.FindByBookingID(ctx, bookingID)
	for i := len(txns) - 1; i >= 0; i-- {
		if txns[i].Status.IsLive() {
			return txns[i], nil
		}
	}
	return nil, nil
}

func (r *transactionRepo) Update(_ context.Context, txn *entity.Transaction) error {
	st, done := r.h.acquire()
	defer done()

	current, ok := st.transactions[txn.ID]
	if !ok {
		return fmt.Errorf("transaction %d not found", txn.ID)
	}
	current.Status = txn.Status
	current.PaymentMethod = txn.PaymentMethod
	current.RefundID = txn.RefundID
	current.RefundedAmount = txn.RefundedAmount
	current.FailureReason = txn.FailureReason
	current.ProcessedAt = txn.ProcessedAt
	current.UpdatedAt = txn.UpdatedAt
	st.transactions[txn.ID] = current
	return nil
}
