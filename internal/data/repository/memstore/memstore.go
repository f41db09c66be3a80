// Package memstore is an in-process implementation of the repository
// interfaces. Transactions are serialized behind one mutex and applied as a
// copy-on-write swap, so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"sync"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"

	"github.com/google/uuid"
)

type state struct {
	bookings       map[int64]entity.Booking
	negotiations   map[int64]entity.Negotiation
	transactions   map[int64]entity.Transaction
	escrows        map[int64]entity.EscrowRecord
	payoutAccounts map[int64]entity.PayoutAccount
	audits         map[int64]entity.BookingAudit
	outbox         map[int64]entity.OutboxEvent
	trips          map[uuid.UUID]entity.Trip
	users          map[uuid.UUID]entity.User
	seq            int64
}

func newState() *state {
	return &state{
		bookings:       make(map[int64]entity.Booking),
		negotiations:   make(map[int64]entity.Negotiation),
		transactions:   make(map[int64]entity.Transaction),
		escrows:        make(map[int64]entity.EscrowRecord),
		payoutAccounts: make(map[int64]entity.PayoutAccount),
		audits:         make(map[int64]entity.BookingAudit),
		outbox:         make(map[int64]entity.OutboxEvent),
		trips:          make(map[uuid.UUID]entity.Trip),
		users:          make(map[uuid.UUID]entity.User),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// clone copies every table. Rows are stored by value and never mutated
// through shared pointers, so a shallow copy per row is enough.
func (s *state) clone() *state {
	c := &state{
		bookings:       cloneMap(s.bookings),
		negotiations:   cloneMap(s.negotiations),
		transactions:   cloneMap(s.transactions),
		escrows:        cloneMap(s.escrows),
		payoutAccounts: cloneMap(s.payoutAccounts),
		audits:         cloneMap(s.audits),
		outbox:         cloneMap(s.outbox),
		trips:          cloneMap(s.trips),
		users:          cloneMap(s.users),
		seq:            s.seq,
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Store owns the committed state.
type Store struct {
	mu sync.Mutex
	st *state
}

// handle gives a repository access to either the committed state (locking
// per call) or a transaction's private copy (already locked).
type handle struct {
	store *Store
	tx    *state
}

func (h handle) acquire() (*state, func()) {
	if h.tx != nil {
		return h.tx, func() {}
	}
	h.store.mu.Lock()
	return h.store.st, h.store.mu.Unlock
}

// New returns a Repository backed by a fresh in-memory store.
func New() (*repository.Repository, *Store) {
	s := &Store{st: newState()}
	repo := s.repositorySet(handle{store: s})
	repo.Tx = s.withTx
	return repo, s
}

func (s *Store) withTx(ctx context.Context, fn func(tx *repository.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(s.repositorySet(handle{store: s, tx: working})); err != nil {
		return err
	}
	s.st = working
	return nil
}

func (s *Store) repositorySet(h handle) *repository.Repository {
	return &repository.Repository{
		Booking:       &bookingRepo{h},
		Negotiation:   &negotiationRepo{h},
		Transaction:   &transactionRepo{h},
		Escrow:        &escrowRepo{h},
		PayoutAccount: &payoutAccountRepo{h},
		Audit:         &auditRepo{h},
		Outbox:        &outboxRepo{h},
		Trip:          &tripRepo{h},
		User:          &userRepo{h},
	}
}

// AddTrip seeds a trip projection.
func (s *Store) AddTrip(trip entity.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.trips[trip.ID] = trip
}

// AddUser seeds a user projection.
func (s *Store) AddUser(user entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[user.ID] = user
}
