package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
	"courier-booking/internal/data/repository/memstore"
	"courier-booking/internal/dto/request"
	"courier-booking/internal/dto/response"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/cache"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/payment"
	"courier-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fixture struct {
	t         *testing.T
	ctx       context.Context
	svc       *Service
	repo      *repository.Repository
	gateway   *payment.SimulatedGateway
	publisher *eventbus.MemoryPublisher
	now       time.Time

	sender  Actor
	carrier Actor
	admin   Actor
	trip    entity.Trip
}

// projections loads the user and trip rows owned by other services.
type projections interface {
	AddUser(user entity.User)
	AddTrip(trip entity.Trip)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, store := memstore.New()
	return newFixtureOn(t, repo, store)
}

func newFixtureOn(t *testing.T, repo *repository.Repository, seed projections) *fixture {
	t.Helper()

	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		repo:      repo,
		gateway:   payment.NewSimulatedGateway("whsec_test"),
		publisher: eventbus.NewMemoryPublisher(),
		now:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		sender:    Actor{ID: uuid.New(), Role: utils.RoleUser},
		carrier:   Actor{ID: uuid.New(), Role: utils.RoleUser},
		admin:     Actor{ID: uuid.New(), Role: utils.RoleAdmin},
	}

	f.trip = entity.Trip{
		ID:              uuid.New(),
		TravelerID:      f.carrier.ID,
		Origin:          "Lisbon",
		Destination:     "Berlin",
		DepartureDate:   f.now.AddDate(0, 0, 10),
		AvailableWeight: decimal.NewFromInt(20),
		Status:          "published",
	}
	seed.AddUser(entity.User{ID: f.sender.ID, Email: "sender@example.com", Role: utils.RoleUser})
	seed.AddUser(entity.User{ID: f.carrier.ID, Email: "carrier@example.com", Role: utils.RoleUser})
	seed.AddTrip(f.trip)

	config := &utils.Config{
		Payment: utils.PaymentConfig{Currency: "usd"},
		Booking: utils.BookingConfig{ExpiryDays: 7},
		Events:  utils.EventsConfig{BatchSize: 100},
	}
	f.svc = NewService(repo, f.gateway, cache.NewMemoryDeduper(time.Hour), f.publisher, config, zap.NewNop(),
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) createBooking(price string) *response.BookingResponse {
	f.t.Helper()
	b, err := f.svc.Booking.CreateBooking(f.ctx, f.sender, &request.CreateBookingRequest{
		TripID:             f.trip.ID.String(),
		CarrierID:          f.carrier.ID.String(),
		PackageDescription: "Two books",
		Weight:             decimal.RequireFromString("1.5"),
		ProposedPrice:      decimal.RequireFromString(price),
		PickupAddress:      "Rua Augusta 1, Lisbon",
		DeliveryAddress:    "Unter den Linden 5, Berlin",
	})
	if err != nil {
		f.t.Fatalf("create booking: %v", err)
	}
	return b
}

func (f *fixture) accept(ref string) {
	f.t.Helper()
	if _, err := f.svc.Booking.AcceptBooking(f.ctx, f.carrier, ref, &request.AcceptBookingRequest{}); err != nil {
		f.t.Fatalf("accept booking: %v", err)
	}
}

// pay runs initiate and confirm with a card that succeeds.
func (f *fixture) pay(ref string) *response.TransactionResponse {
	f.t.Helper()
	if _, err := f.svc.Payment.InitiatePayment(f.ctx, f.sender, ref); err != nil {
		f.t.Fatalf("initiate payment: %v", err)
	}
	txn, err := f.svc.Payment.ConfirmPayment(f.ctx, f.sender, ref, &request.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"})
	if err != nil {
		f.t.Fatalf("confirm payment: %v", err)
	}
	return txn
}

// paidBooking returns a booking in the paid state at the given price.
func (f *fixture) paidBooking(price string) (*response.BookingResponse, *response.TransactionResponse) {
	f.t.Helper()
	b := f.createBooking(price)
	f.accept(b.UUID)
	txn := f.pay(b.UUID)
	return b, txn
}

func (f *fixture) deliver(ref string) {
	f.t.Helper()
	if _, err := f.svc.Booking.MarkInTransit(f.ctx, f.carrier, ref); err != nil {
		f.t.Fatalf("mark in transit: %v", err)
	}
	if _, err := f.svc.Booking.MarkDelivered(f.ctx, f.carrier, ref); err != nil {
		f.t.Fatalf("mark delivered: %v", err)
	}
}

// activateCarrier completes processor onboarding for the carrier.
func (f *fixture) activateCarrier() {
	f.t.Helper()
	account, err := f.svc.Payout.EnsureAccount(f.ctx, f.carrier.ID)
	if err != nil {
		f.t.Fatalf("ensure account: %v", err)
	}
	f.gateway.CompleteOnboarding(account.ExternalAccountID)
	refreshed, err := f.svc.Payout.RefreshStatus(f.ctx, f.carrier)
	if err != nil {
		f.t.Fatalf("refresh status: %v", err)
	}
	if refreshed.Status != entity.PayoutAccountActive {
		f.t.Fatalf("expected active payout account, got %s", refreshed.Status)
	}
}

func (f *fixture) dispute(ref string) {
	f.t.Helper()
	if _, err := f.svc.Booking.OpenDispute(f.ctx, f.sender, ref, &request.DisputeBookingRequest{Reason: "parcel damaged"}); err != nil {
		f.t.Fatalf("open dispute: %v", err)
	}
}

func (f *fixture) expectEscrow(transactionID int64, want entity.EscrowStatus) {
	f.t.Helper()
	escrow, err := f.svc.Escrow.GetByTransaction(f.ctx, f.admin, transactionID)
	if err != nil {
		f.t.Fatalf("get escrow: %v", err)
	}
	if escrow.Status != want {
		f.t.Fatalf("expected %s escrow, got %s", want, escrow.Status)
	}
}

func (f *fixture) status(ref string) entity.BookingStatus {
	f.t.Helper()
	b, err := f.svc.Booking.GetBooking(f.ctx, f.admin, ref)
	if err != nil {
		f.t.Fatalf("get booking: %v", err)
	}
	return b.Status
}

func expectCode(t *testing.T, err error, code apperror.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if got := apperror.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

func TestLoadBooking_Refs(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking("80")

	for _, ref := range []string{b.UUID, strconv.FormatInt(b.ID, 10)} {
		got, err := loadBooking(f.ctx, f.repo, ref, false)
		if err != nil {
			t.Fatalf("load %s: %v", ref, err)
		}
		if got.UUID.String() != b.UUID {
			t.Fatalf("load %s returned booking %s", ref, got.UUID)
		}
	}

	_, err := loadBooking(f.ctx, f.repo, "not-a-ref", false)
	expectCode(t, err, apperror.CodeInvalidInput)

	_, err = loadBooking(f.ctx, f.repo, uuid.NewString(), false)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
