package memstore

import (
	"context"
	"fmt"

	"courier-booking/internal/data/entity"
)

type escrowRepo struct{ h handle }

func (r *escrowRepo) Create(_ context.Context, record *entity.EscrowRecord) error {
	st, done := r.h.acquire()
	defer done()

	if _, ok := st.transactions[record.TransactionID]; !ok {
		return fmt.Errorf("create escrow record: transaction %d does not exist", record.TransactionID)
	}
	for _, e := range st.escrows {
		if e.TransactionID == record.TransactionID {
			return fmt.Errorf("create escrow record: transaction %d already held", record.TransactionID)
		}
	}
	record.ID = st.nextID()
	st.escrows[record.ID] = *record
	return nil
}

func (r *escrowRepo) FindByTransactionID(_ context.Context, transactionID int64) (*entity.EscrowRecord, error) {
	st, done := r.h.acquire()
	defer done()

	for _, e := range st.escrows {
		if e.TransactionID == transactionID {
			return &e, nil
		}
	}
	return nil, nil
}

func (r *escrowRepo) FindByTransactionIDForUpdate(ctx context.Context, transactionID int64) (*entity.EscrowRecord, error) {
	return r.FindByTransactionID(ctx, transactionID)
}

func (r *escrowRepo) Update(_ context.Context, record *entity.EscrowRecord) error {
	st, done := r.h.acquire()
	defer done()

	current, ok := st.escrows[record.ID]
	if !ok {
		return fmt.Errorf("escrow record %d not found", record.ID)
	}
	if record.AmountReleased.GreaterThan(current.AmountHeld) {
		return fmt.Errorf("update escrow record %d: released amount exceeds held amount", record.ID)
	}
	current.AmountReleased = record.AmountReleased
	current.Status = record.Status
	current.TransferID = record.TransferID
	current.ReleasedAt = record.ReleasedAt
	current.ReleaseNotes = record.ReleaseNotes
	current.UpdatedAt = record.UpdatedAt
	st.escrows[record.ID] = current
	return nil
}
