package repository

import (
	"context"
	"errors"

	"courier-booking/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrVersionConflict is returned when an optimistic version check fails.
var ErrVersionConflict = errors.New("version conflict")

// TxFunc runs fn with a Repository bound to one database transaction.
type TxFunc func(ctx context.Context, fn func(tx *Repository) error) error

type Repository struct {
	Booking       BookingRepository
	Negotiation   NegotiationRepository
	Transaction   TransactionRepository
	Escrow        EscrowRepository
	PayoutAccount PayoutAccountRepository
	Audit         AuditRepository
	Outbox        OutboxRepository
	Trip          TripRepository
	User          UserRepository

	Tx TxFunc
}

// WithTx runs fn atomically. Inside a transaction the call joins the
// current one.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.Tx == nil {
		return fn(r)
	}
	return r.Tx(ctx, fn)
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := newRepositorySet(db, log)
	repo.Tx = func(ctx context.Context, fn func(tx *Repository) error) error {
		return database.WithTx(ctx, db, func(tx pgx.Tx) error {
			return fn(newRepositorySet(tx, log))
		})
	}
	return repo
}

func newRepositorySet(q database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		Booking:       NewBookingRepository(q, log),
		Negotiation:   NewNegotiationRepository(q, log),
		Transaction:   NewTransactionRepository(q, log),
		Escrow:        NewEscrowRepository(q, log),
		PayoutAccount: NewPayoutAccountRepository(q, log),
		Audit:         NewAuditRepository(q, log),
		Outbox:        NewOutboxRepository(q, log),
		Trip:          NewTripRepository(q, log),
		User:          NewUserRepository(q, log),
	}
}
