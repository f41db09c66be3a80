package memstore

import (
	"context"

	"courier-booking/internal/data/entity"

	"github.com/google/uuid"
)

type tripRepo struct{ h handle }

func (r *tripRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Trip, error) {
	st, done := r.h.acquire()
	defer done()

	t, ok := st.trips[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type userRepo struct{ h handle }

func (r *userRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	st, done := r.h.acquire()
	defer done()

	u, ok := st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
