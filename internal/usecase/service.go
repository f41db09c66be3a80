package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/cache"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/payment"
	"courier-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	Booking    BookingService
	Payment    PaymentService
	Commission CommissionService
	Escrow     EscrowService
	Payout     PayoutService
	Events     EventService
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == utils.RoleAdmin
}

// SystemActor drives background transitions such as expiry and webhooks.
var SystemActor = Actor{ID: uuid.Nil, Role: utils.RoleSystem}

// engine carries the collaborators shared by every service and the
// transactional building blocks they compose.
type engine struct {
	repo    *repository.Repository
	gateway payment.Gateway
	config  *utils.Config
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *engine) { e.now = now }
}

func NewService(
	repo *repository.Repository,
	gateway payment.Gateway,
	dedup cache.Deduper,
	publisher eventbus.Publisher,
	config *utils.Config,
	log *zap.Logger,
	opts ...Option,
) *Service {
	e := &engine{
		repo:    repo,
		gateway: gateway,
		config:  config,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	payout := NewPayoutService(e)
	commission := NewCommissionService(e)

	return &Service{
		Booking:    NewBookingService(e, payout),
		Payment:    NewPaymentService(e, commission, dedup, payout),
		Commission: commission,
		Escrow:     NewEscrowService(e),
		Payout:     payout,
		Events:     NewEventService(e, publisher),
	}
}

func (e *engine) clock() time.Time {
	return e.now().UTC()
}

func (e *engine) currency() string {
	if e.config != nil && e.config.Payment.Currency != "" {
		return e.config.Payment.Currency
	}
	return "usd"
}

// loadBooking resolves a numeric id or public UUID. With lock set the row is
// held until the surrounding transaction ends.
func loadBooking(ctx context.Context, repo *repository.Repository, ref string, lock bool) (*entity.Booking, error) {
	var (
		booking *entity.Booking
		err     error
	)

	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		if lock {
			booking, err = repo.Booking.FindByIDForUpdate(ctx, id)
		} else {
			booking, err = repo.Booking.FindByID(ctx, id)
		}
	} else if uid, parseErr := uuid.Parse(ref); parseErr == nil {
		booking, err = repo.Booking.FindByUUID(ctx, uid)
		if err == nil && booking != nil && lock {
			booking, err = repo.Booking.FindByIDForUpdate(ctx, booking.ID)
		}
	} else {
		return nil, apperror.InvalidInput("booking id %q is neither numeric nor a UUID", ref)
	}

	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperror.NotFound("booking %s not found", ref)
	}
	return booking, nil
}

// mapConflict turns an optimistic version failure into the given code.
func mapConflict(err error, code apperror.Code, format string, args ...any) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperror.Wrap(code, err, format, args...)
	}
	return err
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
