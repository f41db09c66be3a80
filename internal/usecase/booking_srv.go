package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
	"courier-booking/internal/dto/request"
	"courier-booking/internal/dto/response"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/payment"
	"courier-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, actor Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, actor Actor, ref string) (*response.BookingDetailResponse, error)
	ListUserBookings(ctx context.Context, actor Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	ListTripBookings(ctx context.Context, actor Actor, tripID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetBookingHistory(ctx context.Context, actor Actor, ref string) ([]response.AuditEntryResponse, error)

	// Negotiation
	ProposeNegotiation(ctx context.Context, actor Actor, ref string, req *request.ProposeNegotiationRequest) (*response.NegotiationResponse, error)
	AcceptNegotiation(ctx context.Context, actor Actor, ref string, negotiationID int64) (*response.BookingResponse, error)

	// Transitions
	AcceptBooking(ctx context.Context, actor Actor, ref string, req *request.AcceptBookingRequest) (*response.BookingResponse, error)
	RejectBooking(ctx context.Context, actor Actor, ref string, req *request.RejectBookingRequest) (*response.BookingResponse, error)
	MarkPaid(ctx context.Context, actor Actor, ref string, transactionID int64) (*response.BookingResponse, error)
	MarkInTransit(ctx context.Context, actor Actor, ref string) (*response.BookingResponse, error)
	MarkDelivered(ctx context.Context, actor Actor, ref string) (*response.BookingResponse, error)
	CompleteBooking(ctx context.Context, actor Actor, ref string) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, actor Actor, ref string, req *request.CancelBookingRequest) (*response.BookingResponse, error)
	OpenDispute(ctx context.Context, actor Actor, ref string, req *request.DisputeBookingRequest) (*response.BookingResponse, error)
	RefundBooking(ctx context.Context, actor Actor, ref string, req *request.RefundRequest) (*response.BookingResponse, error)

	// Expiry
	ExpireStalePendingBookings(ctx context.Context) (int, error)
	RunExpirySweeper(ctx context.Context, interval time.Duration) error
}

const expiryBatchSize = 100

type bookingService struct {
	*engine
	payout PayoutService
	log    *zap.Logger
}

func NewBookingService(e *engine, payout PayoutService) BookingService {
	return &bookingService{
		engine: e,
		payout: payout,
		log:    e.log.With(zap.String("service", "booking")),
	}
}

func validationError(req any) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return apperror.InvalidInput("%s", utils.FormatValidationErrors(errs))
	}
	return nil
}

func (s *bookingService) CreateBooking(ctx context.Context, actor Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	if err := validationError(req); err != nil {
		s.log.Warn("Create booking validation failed", zap.Error(err))
		return nil, err
	}

	tripID, err := uuid.Parse(req.TripID)
	if err != nil {
		return nil, apperror.InvalidInput("invalid trip id %s", req.TripID)
	}
	carrierID, err := uuid.Parse(req.CarrierID)
	if err != nil {
		return nil, apperror.InvalidInput("invalid carrier id %s", req.CarrierID)
	}

	if actor.ID == carrierID {
		return nil, apperror.InvalidInput("sender and carrier must be different users")
	}
	if !req.Weight.IsPositive() {
		return nil, apperror.InvalidInput("weight must be greater than zero")
	}
	if !req.ProposedPrice.IsPositive() {
		return nil, apperror.InvalidInput("proposed price must be greater than zero")
	}

	now := s.clock()
	expiresAt := now.AddDate(0, 0, s.expiryDays())
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			return nil, apperror.InvalidInput("expiry must be in the future")
		}
		expiresAt = req.ExpiresAt.UTC()
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = s.currency()
	}

	booking := &entity.Booking{
		Base:                entity.Base{CreatedAt: now, UpdatedAt: now},
		UUID:                uuid.New(),
		TripID:              tripID,
		SenderID:            actor.ID,
		CarrierID:           carrierID,
		PackageDescription:  req.PackageDescription,
		Weight:              req.Weight,
		ProposedPrice:       utils.RoundMoney(req.ProposedPrice),
		Currency:            currency,
		PickupAddress:       req.PickupAddress,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		PhotoURLs:           req.PhotoURLs,
		Status:              entity.BookingStatusPending,
		ExpiresAt:           expiresAt,
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		trip, err := tx.Trip.FindByID(ctx, tripID)
		if err != nil {
			return err
		}
		if trip == nil {
			return apperror.InvalidInput("trip %s not found", tripID)
		}
		if trip.TravelerID != carrierID {
			return apperror.InvalidInput("carrier %s does not travel on trip %s", carrierID, tripID)
		}
		if trip.AvailableWeight.IsPositive() && req.Weight.GreaterThan(trip.AvailableWeight) {
			return apperror.InvalidInput("weight %s exceeds the trip's available %s", req.Weight, trip.AvailableWeight)
		}

		if err := tx.Booking.Create(ctx, booking); err != nil {
			return err
		}

		entry := &entity.BookingAudit{
			BaseSimple: entity.BaseSimple{CreatedAt: now},
			BookingID:  booking.ID,
			ToStatus:   entity.BookingStatusPending,
			ActorID:    actor.ID,
			ActorRole:  "sender",
			Reason:     "created",
		}
		if err := tx.Audit.Append(ctx, entry); err != nil {
			return err
		}

		return s.stage(ctx, tx, booking, eventbus.TypeBookingCreated, actor, fmt.Sprintf("seq-%d", entry.Seq),
			&eventbus.Amounts{Currency: booking.Currency, Amount: booking.ProposedPrice})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_uuid", booking.UUID.String()),
		zap.String("sender_id", booking.SenderID.String()),
		zap.String("carrier_id", booking.CarrierID.String()),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) expiryDays() int {
	if s.config != nil && s.config.Booking.ExpiryDays > 0 {
		return s.config.Booking.ExpiryDays
	}
	return 7
}

// visible loads a booking the actor is allowed to read.
func (s *bookingService) visible(ctx context.Context, actor Actor, ref string) (*entity.Booking, error) {
	booking, err := loadBooking(ctx, s.repo, ref, false)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(actor.ID) && !actor.IsAdmin() {
		return nil, apperror.Forbidden("not a party to this booking")
	}
	return booking, nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor Actor, ref string) (*response.BookingDetailResponse, error) {
	booking, err := s.visible(ctx, actor, ref)
	if err != nil {
		return nil, err
	}

	negotiations, err := s.repo.Negotiation.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	detail := &response.BookingDetailResponse{
		BookingResponse: response.BookingToResponse(booking),
		Negotiations:    make([]response.NegotiationResponse, 0, len(negotiations)),
	}
	for _, n := range negotiations {
		detail.Negotiations = append(detail.Negotiations, response.NegotiationToResponse(n))
	}

	txns, err := s.repo.Transaction.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if len(txns) > 0 {
		detail.Payment = response.TransactionToResponse(txns[len(txns)-1])
	}
	return detail, nil
}

func toBookingResponses(bookings []*entity.Booking) []response.BookingResponse {
	out := make([]response.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, response.BookingToResponse(b))
	}
	return out
}

func pageOf(req *request.PaginatedRequest) int {
	if req.Page < 1 {
		return 1
	}
	return req.Page
}

func (s *bookingService) ListUserBookings(ctx context.Context, actor Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	bookings, err := s.repo.Booking.FindByUserID(ctx, actor.ID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list user bookings", zap.Error(err), zap.String("user_id", actor.ID.String()))
		return nil, err
	}
	total, err := s.repo.Booking.CountByUserID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return response.NewPaginatedResponse(toBookingResponses(bookings), pageOf(req), req.Limit(), total), nil
}

func (s *bookingService) ListTripBookings(ctx context.Context, actor Actor, tripID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	id, err := uuid.Parse(tripID)
	if err != nil {
		return nil, apperror.InvalidInput("invalid trip id %s", tripID)
	}
	trip, err := s.repo.Trip.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, apperror.NotFound("trip %s not found", tripID)
	}
	if trip.TravelerID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.Forbidden("only the traveler can list bookings of a trip")
	}

	bookings, err := s.repo.Booking.FindByTripID(ctx, id, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Booking.CountByTripID(ctx, id)
	if err != nil {
		return nil, err
	}
	return response.NewPaginatedResponse(toBookingResponses(bookings), pageOf(req), req.Limit(), total), nil
}

func (s *bookingService) GetBookingHistory(ctx context.Context, actor Actor, ref string) ([]response.AuditEntryResponse, error) {
	booking, err := s.visible(ctx, actor, ref)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.Audit.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	out := make([]response.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, response.AuditToResponse(e))
	}
	return out, nil
}

// ensureNegotiable checks the locked booking still accepts offers.
func (s *bookingService) ensureNegotiable(ctx context.Context, tx *repository.Repository, b *entity.Booking) error {
	if b.Status.HasAgreedPrice() {
		return apperror.New(apperror.CodeAlreadyAccepted, "booking %s was already accepted", b.UUID)
	}
	if b.Status != entity.BookingStatusPending {
		return apperror.InvalidState("booking is %s", b.Status)
	}
	if !s.clock().Before(b.ExpiresAt) {
		return apperror.InvalidState("booking expired at %s", b.ExpiresAt.Format(time.RFC3339))
	}
	accepted, err := tx.Negotiation.FindAcceptedByBookingID(ctx, b.ID)
	if err != nil {
		return err
	}
	if accepted != nil {
		return apperror.New(apperror.CodeAlreadyAccepted, "booking %s already has an accepted offer", b.UUID)
	}
	return nil
}

func (s *bookingService) ProposeNegotiation(ctx context.Context, actor Actor, ref string, req *request.ProposeNegotiationRequest) (*response.NegotiationResponse, error) {
	if err := validationError(req); err != nil {
		return nil, err
	}

	var negotiation *entity.Negotiation
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		booking, err := loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}
		if !booking.IsParty(actor.ID) {
			return apperror.Forbidden("only the sender or the carrier may negotiate")
		}
		if err := s.ensureNegotiable(ctx, tx, booking); err != nil {
			if apperror.CodeOf(err) == apperror.CodeAlreadyAccepted {
				return apperror.Wrap(apperror.CodeInvalidState, err, "negotiation is closed")
			}
			return err
		}

		negotiation = &entity.Negotiation{
			BaseSimple: entity.BaseSimple{CreatedAt: s.clock()},
			BookingID:  booking.ID,
			ProposerID: actor.ID,
			Amount:     utils.RoundMoney(req.Amount),
			Message:    req.Message,
		}
		if err := tx.Negotiation.Create(ctx, negotiation); err != nil {
			return err
		}

		return s.stage(ctx, tx, booking, eventbus.TypeNegotiationOffered, actor,
			fmt.Sprintf("negotiation-%d", negotiation.ID),
			&eventbus.Amounts{Currency: booking.Currency, Amount: negotiation.Amount})
	})
	if err != nil {
		return nil, err
	}

	resp := response.NegotiationToResponse(negotiation)
	return &resp, nil
}

// accept marks the negotiation accepted and moves the locked booking to
// accepted. Exactly one call per booking can succeed.
func (s *bookingService) accept(ctx context.Context, tx *repository.Repository, b *entity.Booking, actor Actor, n *entity.Negotiation) error {
	if err := s.ensureNegotiable(ctx, tx, b); err != nil {
		return err
	}

	if n.ID == 0 {
		n.IsAccepted = true
		if err := tx.Negotiation.Create(ctx, n); err != nil {
			return mapConflict(err, apperror.CodeAlreadyAccepted, "booking %s was accepted concurrently", b.UUID)
		}
	} else if err := tx.Negotiation.MarkAccepted(ctx, n.ID); err != nil {
		return mapConflict(err, apperror.CodeAlreadyAccepted, "booking %s was accepted concurrently", b.UUID)
	}

	quote, err := quoteFees(ctx, tx, s.clock(), n.Amount, &b.SenderID)
	if err != nil {
		return err
	}

	err = s.apply(ctx, tx, b, move{
		to:     entity.BookingStatusAccepted,
		actor:  actor,
		reason: fmt.Sprintf("negotiation %d", n.ID),
		money:  moneyNone,
		amounts: &eventbus.Amounts{
			Currency:   b.Currency,
			Amount:     n.Amount,
			Commission: &quote.CommissionAmount,
			CarrierNet: &quote.CarrierAmount,
		},
	})
	return mapConflict(err, apperror.CodeAlreadyAccepted, "booking %s was accepted concurrently", b.UUID)
}

// afterAccept onboards the carrier for payouts. Failures are logged only.
func (s *bookingService) afterAccept(ctx context.Context, b *entity.Booking) {
	if _, err := s.payout.EnsureAccount(ctx, b.CarrierID); err != nil {
		s.log.Warn("Carrier payout account setup deferred",
			zap.Error(err),
			zap.String("carrier_id", b.CarrierID.String()),
		)
	}
}

func (s *bookingService) AcceptNegotiation(ctx context.Context, actor Actor, ref string, negotiationID int64) (*response.BookingResponse, error) {
	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		booking, err = loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}

		negotiation, err := tx.Negotiation.FindByID(ctx, negotiationID)
		if err != nil {
			return err
		}
		if negotiation == nil || negotiation.BookingID != booking.ID {
			return apperror.NotFound("negotiation %d not found on booking %s", negotiationID, ref)
		}
		if !booking.IsParty(actor.ID) || actor.ID == negotiation.ProposerID {
			return apperror.Forbidden("only the counterpart of the proposer may accept an offer")
		}

		return s.accept(ctx, tx, booking, actor, negotiation)
	})
	if err != nil {
		return nil, err
	}

	s.afterAccept(ctx, booking)
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) AcceptBooking(ctx context.Context, actor Actor, ref string, req *request.AcceptBookingRequest) (*response.BookingResponse, error) {
	if req != nil && req.FinalPrice != nil && !req.FinalPrice.IsPositive() {
		return nil, apperror.InvalidInput("final price must be greater than zero")
	}

	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		booking, err = loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}
		if actor.ID != booking.CarrierID {
			return apperror.Forbidden("only the carrier may accept a booking")
		}

		// an implicit offer: the sender's proposed price or the carrier's override
		implicit := &entity.Negotiation{
			BaseSimple: entity.BaseSimple{CreatedAt: s.clock()},
			BookingID:  booking.ID,
			ProposerID: booking.SenderID,
			Amount:     booking.ProposedPrice,
		}
		if req != nil && req.FinalPrice != nil {
			implicit.ProposerID = booking.CarrierID
			implicit.Amount = utils.RoundMoney(*req.FinalPrice)
		}
		return s.accept(ctx, tx, booking, actor, implicit)
	})
	if err != nil {
		return nil, err
	}

	s.afterAccept(ctx, booking)
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// transition runs a money-free transition on one booking.
func (s *bookingService) transition(ctx context.Context, actor Actor, ref string, to entity.BookingStatus, reason string) (*response.BookingResponse, error) {
	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		booking, err = loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}
		var amounts *eventbus.Amounts
		if booking.FinalPrice != nil {
			amounts = &eventbus.Amounts{Currency: booking.Currency, Amount: *booking.FinalPrice}
		}
		return s.apply(ctx, tx, booking, move{
			to:      to,
			actor:   actor,
			reason:  reason,
			money:   moneyNone,
			amounts: amounts,
		})
	})
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) RejectBooking(ctx context.Context, actor Actor, ref string, req *request.RejectBookingRequest) (*response.BookingResponse, error) {
	reason := "rejected"
	if req != nil && req.Reason != nil && *req.Reason != "" {
		if err := validationError(req); err != nil {
			return nil, err
		}
		reason = *req.Reason
	}
	return s.transition(ctx, actor, ref, entity.BookingStatusRejected, reason)
}

func (s *bookingService) MarkInTransit(ctx context.Context, actor Actor, ref string) (*response.BookingResponse, error) {
	return s.transition(ctx, actor, ref, entity.BookingStatusInTransit, "picked up")
}

func (s *bookingService) MarkDelivered(ctx context.Context, actor Actor, ref string) (*response.BookingResponse, error) {
	return s.transition(ctx, actor, ref, entity.BookingStatusDelivered, "delivered")
}

func (s *bookingService) OpenDispute(ctx context.Context, actor Actor, ref string, req *request.DisputeBookingRequest) (*response.BookingResponse, error) {
	if err := validationError(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, ref, entity.BookingStatusDisputed, req.Reason)
}

// markPaid moves the locked booking to paid once txn has succeeded and
// opens its escrow hold. Repeating it for the same transaction is a no-op.
func (e *engine) markPaid(ctx context.Context, tx *repository.Repository, b *entity.Booking, txn *entity.Transaction, actor Actor) error {
	if txn.BookingID != b.ID {
		return apperror.InvalidInput("transaction %d does not belong to booking %d", txn.ID, b.ID)
	}
	if txn.Status != entity.TransactionStatusSucceeded {
		return apperror.InvalidState("transaction %d is %s, not succeeded", txn.ID, txn.Status)
	}

	if b.Status != entity.BookingStatusPaymentPending {
		return e.holdLateCapture(ctx, tx, b, txn)
	}

	if _, err := e.hold(ctx, tx, txn, txn.CarrierAmount, fmt.Sprintf("payment %s captured", txn.PaymentIntentID)); err != nil {
		return err
	}

	return e.apply(ctx, tx, b, move{
		to:     entity.BookingStatusPaid,
		actor:  actor,
		reason: fmt.Sprintf("transaction %d succeeded", txn.ID),
		money:  moneyCapture,
		amounts: &eventbus.Amounts{
			Currency:   txn.Currency,
			Amount:     txn.GrossAmount,
			Commission: &txn.CommissionAmount,
			CarrierNet: &txn.CarrierAmount,
		},
	})
}

// holdLateCapture books a capture that landed after the booking left
// payment_pending. The funds are held so an admin can settle a dispute; a
// booking that already ended gets them refunded at once.
func (e *engine) holdLateCapture(ctx context.Context, tx *repository.Repository, b *entity.Booking, txn *entity.Transaction) error {
	held, err := tx.Escrow.FindByTransactionID(ctx, txn.ID)
	if err != nil {
		return err
	}
	if held != nil {
		return nil
	}
	if b.Status == entity.BookingStatusPending || b.Status == entity.BookingStatusAccepted {
		return apperror.InvalidState("booking is %s, expected %s", b.Status, entity.BookingStatusPaymentPending)
	}

	if _, err := e.hold(ctx, tx, txn, txn.CarrierAmount, fmt.Sprintf("payment %s captured while booking %s", txn.PaymentIntentID, b.Status)); err != nil {
		return err
	}
	e.log.Warn("Payment captured after booking left payment_pending",
		zap.Int64("booking_id", b.ID),
		zap.Int64("transaction_id", txn.ID),
		zap.String("booking_status", string(b.Status)),
	)
	if !b.Status.IsTerminal() {
		return nil
	}

	_, err = e.refund(ctx, tx, txn, decimal.Zero, fmt.Sprintf("booking %s before capture", b.Status))
	return err
}

func (s *bookingService) MarkPaid(ctx context.Context, actor Actor, ref string, transactionID int64) (*response.BookingResponse, error) {
	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		booking, err = loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}
		txn, err := tx.Transaction.FindByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn == nil {
			return apperror.NotFound("transaction %d not found", transactionID)
		}
		return s.markPaid(ctx, tx, booking, txn, actor)
	})
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// agreedPrice recovers the price cleared when the booking entered dispute.
func agreedPrice(ctx context.Context, tx *repository.Repository, b *entity.Booking, txn *entity.Transaction) (decimal.Decimal, error) {
	if b.FinalPrice != nil {
		return *b.FinalPrice, nil
	}
	accepted, err := tx.Negotiation.FindAcceptedByBookingID(ctx, b.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if accepted != nil {
		return accepted.Amount, nil
	}
	return txn.CarrierAmount, nil
}

func (s *bookingService) CompleteBooking(ctx context.Context, actor Actor, ref string) (*response.BookingResponse, error) {
	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		booking, err = loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}

		rule, err := lookupRule(booking.Status, entity.BookingStatusCompleted)
		if err != nil {
			return err
		}
		if partiesOf(actor, booking)&rule.by == 0 {
			return apperror.Forbidden("only %s may complete a booking from %s", rule.by, booking.Status)
		}

		txn, err := tx.Transaction.FindLiveByBookingID(ctx, booking.ID)
		if err != nil {
			return err
		}
		if txn == nil || txn.Status != entity.TransactionStatusSucceeded {
			return apperror.InvalidState("booking has no captured payment to release")
		}
		record, err := tx.Escrow.FindByTransactionIDForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}
		if record == nil || record.Status == entity.EscrowStatusRefunded {
			return apperror.InvalidState("booking has no held funds to release")
		}

		remaining := record.Remaining()
		if remaining.IsPositive() {
			destination, err := carrierDestination(ctx, tx, booking)
			if err != nil {
				return err
			}
			if _, err := s.release(ctx, tx, txn, remaining, destination, "delivery confirmed"); err != nil {
				return err
			}
		}

		price, err := agreedPrice(ctx, tx, booking, txn)
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, booking, move{
			to:     entity.BookingStatusCompleted,
			actor:  actor,
			reason: "delivery confirmed",
			money:  moneyRelease,
			amounts: &eventbus.Amounts{
				Currency:   txn.Currency,
				Amount:     price,
				Commission: &txn.CommissionAmount,
				CarrierNet: &remaining,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking completed", zap.Int64("booking_id", booking.ID))
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// voidPayment stops the live payment of a payment_pending or disputed
// booking. An open intent is cancelled; a captured one is refunded.
func (s *bookingService) voidPayment(ctx context.Context, tx *repository.Repository, b *entity.Booking, reason string) (money, []string, error) {
	txn, err := tx.Transaction.FindLiveByBookingID(ctx, b.ID)
	if err != nil {
		return 0, nil, err
	}
	if txn == nil {
		return moneyVoid, nil, nil
	}
	txn, err = tx.Transaction.FindByIDForUpdate(ctx, txn.ID)
	if err != nil {
		return 0, nil, err
	}

	intent, err := s.gateway.RetrievePaymentIntent(ctx, txn.PaymentIntentID)
	if err != nil {
		return 0, nil, err
	}

	if intent.Status == payment.IntentSucceeded {
		if txn.Status != entity.TransactionStatusSucceeded {
			now := s.clock()
			txn.Status = entity.TransactionStatusSucceeded
			txn.ProcessedAt = &now
		}
		if _, err := s.refund(ctx, tx, txn, decimal.Zero, reason); err != nil {
			return 0, nil, err
		}
		return moneyRefund, refundExtraEvents(b.Status), nil
	}

	if intent.Status != payment.IntentCanceled {
		if _, err := s.gateway.CancelPaymentIntent(ctx, txn.PaymentIntentID); err != nil {
			return 0, nil, err
		}
	}
	txn.Status = entity.TransactionStatusCancelled
	txn.UpdatedAt = s.clock()
	if err := tx.Transaction.Update(ctx, txn); err != nil {
		return 0, nil, err
	}
	return moneyVoid, nil, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, actor Actor, ref string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	if err := validationError(req); err != nil {
		return nil, err
	}

	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		booking, err = loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}

		rule, err := lookupRule(booking.Status, entity.BookingStatusCancelled)
		if err != nil {
			return err
		}
		if rule.money&moneyNone == 0 && rule.money&moneyVoid == 0 {
			return apperror.InvalidState("booking is %s; money has moved, request a refund instead", booking.Status)
		}
		if partiesOf(actor, booking)&rule.by == 0 {
			return apperror.Forbidden("only %s may cancel a booking in %s", rule.by, booking.Status)
		}

		m := move{
			to:     entity.BookingStatusCancelled,
			actor:  actor,
			reason: req.Reason,
			money:  moneyNone,
		}

		// a dispute can open while an intent is still live, so it gets the
		// same treatment as payment_pending
		switch booking.Status {
		case entity.BookingStatusPaymentPending, entity.BookingStatusDisputed:
			m.money, m.extra, err = s.voidPayment(ctx, tx, booking, req.Reason)
			if err != nil {
				return err
			}
		}

		booking.CancellationDetails = req.Details
		return s.apply(ctx, tx, booking, m)
	})
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) RefundBooking(ctx context.Context, actor Actor, ref string, req *request.RefundRequest) (*response.BookingResponse, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("admin only")
	}
	if err := validationError(req); err != nil {
		return nil, err
	}

	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		booking, err = loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}
		txn, err := tx.Transaction.FindLiveByBookingID(ctx, booking.ID)
		if err != nil {
			return err
		}
		if txn == nil {
			return apperror.InvalidState("booking has no payment to refund")
		}
		txn, err = tx.Transaction.FindByIDForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}
		_, err = s.refundBooking(ctx, tx, booking, txn, actor, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) expireOne(ctx context.Context, id int64) (bool, error) {
	expired := false
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		booking, err := tx.Booking.FindByIDForUpdate(ctx, id)
		if err != nil || booking == nil {
			return err
		}
		// a concurrent action may have won the lock first
		if booking.Status != entity.BookingStatusPending || s.clock().Before(booking.ExpiresAt) {
			return nil
		}
		if err := s.apply(ctx, tx, booking, move{
			to:     entity.BookingStatusCancelled,
			actor:  SystemActor,
			reason: "expired",
			money:  moneyNone,
		}); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

func (s *bookingService) ExpireStalePendingBookings(ctx context.Context) (int, error) {
	total := 0
	for {
		ids, err := s.repo.Booking.FindExpiredPendingIDs(ctx, s.clock(), expiryBatchSize)
		if err != nil {
			return total, err
		}

		progressed := 0
		for _, id := range ids {
			ok, err := s.expireOne(ctx, id)
			if err != nil {
				s.log.Warn("Failed to expire booking", zap.Error(err), zap.Int64("booking_id", id))
				continue
			}
			if ok {
				progressed++
			}
		}
		total += progressed

		if len(ids) < expiryBatchSize || progressed == 0 {
			break
		}
	}

	if total > 0 {
		s.log.Info("Expired stale bookings", zap.Int("count", total))
	}
	return total, nil
}

func (s *bookingService) RunExpirySweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Expiry sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Expiry sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.ExpireStalePendingBookings(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}
