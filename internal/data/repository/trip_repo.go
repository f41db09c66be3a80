package repository

import (
	"context"
	"errors"
	"fmt"

	"courier-booking/internal/data/entity"
	"courier-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TripRepository reads trips published by the trip service.
type TripRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Trip, error)
}

type tripRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTripRepository(db database.Querier, log *zap.Logger) TripRepository {
	return &tripRepository{
		db:  db,
		log: log.With(zap.String("repository", "trip")),
	}
}

func (r *tripRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Trip, error) {
	query := `
		SELECT id, traveler_id, origin, destination, departure_date, available_weight, status
		FROM trips
		WHERE id = $1
	`

	var trip entity.Trip
	err := r.db.QueryRow(ctx, query, id).Scan(
		&trip.ID,
		&trip.TravelerID,
		&trip.Origin,
		&trip.Destination,
		&trip.DepartureDate,
		&trip.AvailableWeight,
		&trip.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find trip by ID",
			zap.Error(err),
			zap.String("trip_id", id.String()),
		)
		return nil, fmt.Errorf("find trip by ID %s: %w", id, err)
	}

	return &trip, nil
}
