package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id int64) (*entity.Booking, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	FindByTripID(ctx context.Context, tripID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByTripID(ctx context.Context, tripID uuid.UUID) (int64, error)

	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id int64) (*entity.Booking, error)
	// Update persists the booking if its version is unchanged and bumps it.
	Update(ctx context.Context, booking *entity.Booking) error

	// Business queries
	FindExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]int64, error)
	CompletedHistoryBySender(ctx context.Context, senderID uuid.UUID, since time.Time) (entity.RequesterHistory, error)
}

const bookingColumns = `id, uuid, trip_id, sender_id, carrier_id, package_description, weight,
	proposed_price, final_price, currency, pickup_address, delivery_address, special_instructions,
	photo_urls, status, cancellation_reason, cancellation_details, version, expires_at, created_at, updated_at`

type bookingRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewBookingRepository(db database.Querier, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var booking entity.Booking
	err := row.Scan(
		&booking.ID,
		&booking.UUID,
		&booking.TripID,
		&booking.SenderID,
		&booking.CarrierID,
		&booking.PackageDescription,
		&booking.Weight,
		&booking.ProposedPrice,
		&booking.FinalPrice,
		&booking.Currency,
		&booking.PickupAddress,
		&booking.DeliveryAddress,
		&booking.SpecialInstructions,
		&booking.PhotoURLs,
		&booking.Status,
		&booking.CancellationReason,
		&booking.CancellationDetails,
		&booking.Version,
		&booking.ExpiresAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (uuid, trip_id, sender_id, carrier_id, package_description, weight,
			proposed_price, final_price, currency, pickup_address, delivery_address, special_instructions,
			photo_urls, status, version, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`

	if booking.Version == 0 {
		booking.Version = 1
	}
	if booking.PhotoURLs == nil {
		booking.PhotoURLs = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		booking.UUID,
		booking.TripID,
		booking.SenderID,
		booking.CarrierID,
		booking.PackageDescription,
		booking.Weight,
		booking.ProposedPrice,
		booking.FinalPrice,
		booking.Currency,
		booking.PickupAddress,
		booking.DeliveryAddress,
		booking.SpecialInstructions,
		booking.PhotoURLs,
		booking.Status,
		booking.Version,
		booking.ExpiresAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	).Scan(&booking.ID)

	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_uuid", booking.UUID.String()),
			zap.String("sender_id", booking.SenderID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.UUID, err)
	}

	return nil
}

func (r *bookingRepository) findOne(ctx context.Context, query string, arg any) (*entity.Booking, error) {
	booking, err := scanBooking(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking", zap.Error(err), zap.Any("key", arg))
		return nil, fmt.Errorf("find booking %v: %w", arg, err)
	}
	return booking, nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id int64) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *bookingRepository) FindByUUID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE uuid = $1`, id)
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, id int64) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) findMany(ctx context.Context, query string, args ...any) ([]*entity.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query bookings", zap.Error(err))
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE sender_id = $1 OR carrier_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.findMany(ctx, query, userID, limit, offset)
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE sender_id = $1 OR carrier_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count bookings by user ID %s: %w", userID, err)
	}

	return count, nil
}

func (r *bookingRepository) FindByTripID(ctx context.Context, tripID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE trip_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.findMany(ctx, query, tripID, limit, offset)
}

func (r *bookingRepository) CountByTripID(ctx context.Context, tripID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE trip_id = $1`, tripID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by trip ID",
			zap.Error(err),
			zap.String("trip_id", tripID.String()),
		)
		return 0, fmt.Errorf("count bookings by trip ID %s: %w", tripID, err)
	}
	return count, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET final_price = $3, status = $4, cancellation_reason = $5, cancellation_details = $6,
		    expires_at = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.Version,
		booking.FinalPrice,
		booking.Status,
		booking.CancellationReason,
		booking.CancellationDetails,
		booking.ExpiresAt,
		booking.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.Int64("booking_id", booking.ID),
		)
		return fmt.Errorf("update booking %d: %w", booking.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update booking %d at version %d: %w", booking.ID, booking.Version, ErrVersionConflict)
	}

	booking.Version++
	return nil
}

func (r *bookingRepository) FindExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
		SELECT id FROM bookings
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to find expired bookings", zap.Error(err))
		return nil, fmt.Errorf("find expired bookings: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired booking id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *bookingRepository) CompletedHistoryBySender(ctx context.Context, senderID uuid.UUID, since time.Time) (entity.RequesterHistory, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(final_price), 0)
		FROM bookings
		WHERE sender_id = $1 AND status = 'completed' AND updated_at >= $2
	`

	var history entity.RequesterHistory
	var volume decimal.Decimal
	if err := r.db.QueryRow(ctx, query, senderID, since).Scan(&history.CompletedBookings, &volume); err != nil {
		r.log.Error("Failed to aggregate completed bookings",
			zap.Error(err),
			zap.String("sender_id", senderID.String()),
		)
		return entity.RequesterHistory{}, fmt.Errorf("aggregate completed bookings for %s: %w", senderID, err)
	}
	history.CompletedVolume = volume
	return history, nil
}
