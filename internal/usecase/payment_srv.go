package usecase

import (
	"context"
	"fmt"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
	"courier-booking/internal/dto/request"
	"courier-booking/internal/dto/response"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/cache"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentService interface {
	// InitiatePayment opens a payment intent for the agreed price plus fees.
	// A second call while a live transaction exists returns that transaction.
	InitiatePayment(ctx context.Context, actor Actor, ref string) (*response.TransactionResponse, error)
	ConfirmPayment(ctx context.Context, actor Actor, ref string, req *request.ConfirmPaymentRequest) (*response.TransactionResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*response.WebhookResponse, error)
}

type paymentService struct {
	*engine
	commission CommissionService
	dedup      cache.Deduper
	payout     PayoutService
	log        *zap.Logger
}

func NewPaymentService(e *engine, commission CommissionService, dedup cache.Deduper, payout PayoutService) PaymentService {
	return &paymentService{
		engine:     e,
		commission: commission,
		dedup:      dedup,
		payout:     payout,
		log:        e.log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) withClientSecret(ctx context.Context, txn *entity.Transaction) *response.TransactionResponse {
	resp := response.TransactionToResponse(txn)
	if intent, err := s.gateway.RetrievePaymentIntent(ctx, txn.PaymentIntentID); err == nil {
		resp.ClientSecret = intent.ClientSecret
	} else {
		s.log.Warn("Could not fetch client secret", zap.Error(err), zap.String("payment_intent_id", txn.PaymentIntentID))
	}
	return resp
}

func payable(b *entity.Booking) error {
	if b.Status != entity.BookingStatusAccepted && b.Status != entity.BookingStatusPaymentPending {
		return apperror.InvalidState("booking is %s, payment is only collected after acceptance", b.Status)
	}
	if b.FinalPrice == nil || !b.FinalPrice.IsPositive() {
		return apperror.InvalidState("booking has no agreed price")
	}
	return nil
}

func (s *paymentService) InitiatePayment(ctx context.Context, actor Actor, ref string) (*response.TransactionResponse, error) {
	booking, err := loadBooking(ctx, s.repo, ref, false)
	if err != nil {
		return nil, err
	}
	if actor.ID != booking.SenderID {
		return nil, apperror.Forbidden("only the sender pays for a booking")
	}
	if live, err := s.repo.Transaction.FindLiveByBookingID(ctx, booking.ID); err != nil {
		return nil, err
	} else if live != nil {
		return s.withClientSecret(ctx, live), nil
	}
	if err := payable(booking); err != nil {
		return nil, err
	}

	quote, err := s.commission.CalculateFees(ctx, *booking.FinalPrice, &booking.SenderID)
	if err != nil {
		return nil, err
	}
	ok, err := s.commission.ValidateCommission(ctx, quote.BaseAmount, quote.CommissionAmount, &booking.SenderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.CodeConflict, "fee quote for booking %s could not be verified", booking.UUID)
	}

	var (
		txn    *entity.Transaction
		secret string
	)
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		locked, err := loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}
		if err := payable(locked); err != nil {
			return err
		}
		if !locked.FinalPrice.Equal(quote.BaseAmount) {
			return apperror.New(apperror.CodeConflict, "agreed price changed while quoting")
		}

		existing, err := tx.Transaction.FindByBookingID(ctx, locked.ID)
		if err != nil {
			return err
		}
		for _, t := range existing {
			if t.Status.IsLive() {
				txn = t
				return nil
			}
		}

		// the requester's history may have moved since the quote
		fresh, err := quoteFees(ctx, tx, s.clock(), quote.BaseAmount, &locked.SenderID)
		if err != nil {
			return err
		}
		if !commissionMatches(fresh, quote.CommissionAmount) {
			return apperror.New(apperror.CodeConflict, "fees changed while quoting, retry the payment")
		}

		attempt := len(existing) + 1
		intent, err := s.gateway.CreatePaymentIntent(ctx, payment.CreateIntentRequest{
			Amount:         quote.TotalAmount,
			Currency:       locked.Currency,
			Description:    fmt.Sprintf("Booking %s", locked.UUID),
			IdempotencyKey: fmt.Sprintf("%s-attempt-%d", locked.UUID, attempt),
			Metadata: map[string]string{
				"booking_id":   locked.UUID.String(),
				"sender_id":    locked.SenderID.String(),
				"carrier_id":   locked.CarrierID.String(),
				"carrier_net":  quote.CarrierAmount.StringFixed(2),
				"commission":   quote.CommissionAmount.StringFixed(2),
				"attempt":      fmt.Sprint(attempt),
				"base_amount":  quote.BaseAmount.StringFixed(2),
				"fee_rate_pct": quote.Rate.String(),
			},
		})
		if err != nil {
			return err
		}
		secret = intent.ClientSecret

		now := s.clock()
		txn = &entity.Transaction{
			Base:             entity.Base{CreatedAt: now, UpdatedAt: now},
			BookingID:        locked.ID,
			PaymentIntentID:  intent.ID,
			GrossAmount:      quote.TotalAmount,
			CommissionAmount: quote.CommissionAmount,
			CarrierAmount:    quote.CarrierAmount,
			CommissionRate:   quote.Rate,
			Currency:         locked.Currency,
			Status:           entity.TransactionStatusPending,
			RefundedAmount:   decimal.Zero,
		}
		if err := tx.Transaction.Create(ctx, txn); err != nil {
			return err
		}

		if locked.Status == entity.BookingStatusPaymentPending {
			return nil
		}
		return s.apply(ctx, tx, locked, move{
			to:     entity.BookingStatusPaymentPending,
			actor:  actor,
			reason: fmt.Sprintf("payment intent %s", intent.ID),
			money:  moneyCollect,
			amounts: &eventbus.Amounts{
				Currency:   locked.Currency,
				Amount:     quote.TotalAmount,
				Commission: &quote.CommissionAmount,
				CarrierNet: &quote.CarrierAmount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if secret == "" {
		return s.withClientSecret(ctx, txn), nil
	}

	s.log.Info("Payment initiated",
		zap.Int64("booking_id", txn.BookingID),
		zap.Int64("transaction_id", txn.ID),
		zap.String("payment_intent_id", txn.PaymentIntentID),
		zap.String("gross_amount", txn.GrossAmount.String()),
	)
	resp := response.TransactionToResponse(txn)
	resp.ClientSecret = secret
	return resp, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, actor Actor, ref string, req *request.ConfirmPaymentRequest) (*response.TransactionResponse, error) {
	if err := validationError(req); err != nil {
		return nil, err
	}

	var (
		txn      *entity.Transaction
		declined error
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		booking, err := loadBooking(ctx, tx, ref, true)
		if err != nil {
			return err
		}
		if actor.ID != booking.SenderID {
			return apperror.Forbidden("only the sender pays for a booking")
		}

		live, err := tx.Transaction.FindLiveByBookingID(ctx, booking.ID)
		if err != nil {
			return err
		}
		if live == nil {
			return apperror.InvalidState("booking has no open payment, initiate one first")
		}
		txn, err = tx.Transaction.FindByIDForUpdate(ctx, live.ID)
		if err != nil {
			return err
		}
		if txn.Status == entity.TransactionStatusSucceeded || txn.Status == entity.TransactionStatusRefunded {
			return nil
		}
		if booking.Status != entity.BookingStatusPaymentPending {
			return apperror.InvalidState("booking is %s, expected %s", booking.Status, entity.BookingStatusPaymentPending)
		}

		intent, err := s.gateway.ConfirmPaymentIntent(ctx, txn.PaymentIntentID, req.PaymentMethod)
		now := s.clock()
		if err != nil {
			if apperror.CodeOf(err) != apperror.CodeProcessorRejected {
				return err
			}
			// keep the failure on record so a new attempt can be initiated
			declined = err
			txn.Status = entity.TransactionStatusFailed
			txn.PaymentMethod = &req.PaymentMethod
			txn.FailureReason = strPtr(apperror.MessageOf(err))
			txn.UpdatedAt = now
			return tx.Transaction.Update(ctx, txn)
		}

		txn.PaymentMethod = &req.PaymentMethod
		txn.UpdatedAt = now
		switch intent.Status {
		case payment.IntentSucceeded:
			txn.Status = entity.TransactionStatusSucceeded
			txn.ProcessedAt = &now
			if err := tx.Transaction.Update(ctx, txn); err != nil {
				return err
			}
			return s.markPaid(ctx, tx, booking, txn, actor)
		case payment.IntentProcessing:
			txn.Status = entity.TransactionStatusProcessing
		}
		return tx.Transaction.Update(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	if declined != nil {
		s.log.Warn("Payment declined",
			zap.Error(declined),
			zap.Int64("transaction_id", txn.ID),
		)
		return nil, declined
	}
	return response.TransactionToResponse(txn), nil
}

// recordPaymentSucceeded marks the intent's transaction succeeded, holds the
// carrier net in escrow and moves the booking to paid, all in tx.
func (e *engine) recordPaymentSucceeded(ctx context.Context, tx *repository.Repository, intentID string, actor Actor) error {
	found, err := tx.Transaction.FindByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if found == nil {
		return apperror.NotFound("no transaction for payment intent %s", intentID)
	}
	txn, booking, err := lockPair(ctx, tx, found)
	if err != nil {
		return err
	}

	switch txn.Status {
	case entity.TransactionStatusSucceeded:
	case entity.TransactionStatusRefunded:
		return nil
	case entity.TransactionStatusPending, entity.TransactionStatusProcessing:
		now := e.clock()
		txn.Status = entity.TransactionStatusSucceeded
		txn.ProcessedAt = &now
		txn.UpdatedAt = now
		if err := tx.Transaction.Update(ctx, txn); err != nil {
			return err
		}
	default:
		return apperror.InvalidState("transaction %d is %s", txn.ID, txn.Status)
	}

	return e.markPaid(ctx, tx, booking, txn, actor)
}

// closeAttempt records a failed or cancelled intent. The booking stays in
// payment_pending so the sender can start a new attempt.
func (e *engine) closeAttempt(ctx context.Context, tx *repository.Repository, intentID string, status entity.TransactionStatus, reason string) error {
	found, err := tx.Transaction.FindByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if found == nil {
		return apperror.NotFound("no transaction for payment intent %s", intentID)
	}
	txn, _, err := lockPair(ctx, tx, found)
	if err != nil {
		return err
	}
	if txn.Status != entity.TransactionStatusPending && txn.Status != entity.TransactionStatusProcessing {
		return nil
	}

	txn.Status = status
	txn.FailureReason = strPtr(reason)
	txn.UpdatedAt = e.clock()
	return tx.Transaction.Update(ctx, txn)
}

// recordExternalRefund books a refund issued directly at the processor and
// cancels the booking when it still held the funds.
func (e *engine) recordExternalRefund(ctx context.Context, tx *repository.Repository, ev *payment.WebhookEvent) error {
	found, err := tx.Transaction.FindByIntentID(ctx, ev.PaymentIntentID)
	if err != nil {
		return err
	}
	if found == nil {
		return apperror.NotFound("no transaction for payment intent %s", ev.PaymentIntentID)
	}
	txn, booking, err := lockPair(ctx, tx, found)
	if err != nil {
		return err
	}
	if txn.Status == entity.TransactionStatusRefunded {
		return nil
	}
	if txn.Status != entity.TransactionStatusSucceeded {
		return apperror.InvalidState("transaction %d is %s", txn.ID, txn.Status)
	}

	record, err := tx.Escrow.FindByTransactionIDForUpdate(ctx, txn.ID)
	if err != nil {
		return err
	}
	if record != nil && record.AmountReleased.IsPositive() {
		e.log.Error("Processor refunded a charge that was already paid out",
			zap.Int64("transaction_id", txn.ID),
			zap.String("released", record.AmountReleased.String()),
		)
	}

	amount := ev.Amount
	if !amount.IsPositive() {
		amount = txn.GrossAmount
	}
	if _, err := e.recordRefund(ctx, tx, txn, record, ev.ID, amount); err != nil {
		return err
	}

	if _, err := lookupRule(booking.Status, entity.BookingStatusCancelled); err != nil {
		return nil
	}
	return e.apply(ctx, tx, booking, move{
		to:      entity.BookingStatusCancelled,
		actor:   SystemActor,
		reason:  "refunded at processor",
		money:   moneyRefund,
		amounts: &eventbus.Amounts{Currency: txn.Currency, Amount: amount},
		extra:   refundExtraEvents(booking.Status),
	})
}

func (s *paymentService) dispatch(ctx context.Context, ev *payment.WebhookEvent) error {
	switch ev.Type {
	case payment.EventPaymentSucceeded:
		return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
			return s.recordPaymentSucceeded(ctx, tx, ev.PaymentIntentID, SystemActor)
		})
	case payment.EventPaymentFailed:
		reason := ev.FailureMessage
		if reason == "" {
			reason = "payment failed"
		}
		return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
			return s.closeAttempt(ctx, tx, ev.PaymentIntentID, entity.TransactionStatusFailed, reason)
		})
	case payment.EventPaymentCanceled:
		return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
			return s.closeAttempt(ctx, tx, ev.PaymentIntentID, entity.TransactionStatusCancelled, "canceled at processor")
		})
	case payment.EventChargeRefunded:
		return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
			return s.recordExternalRefund(ctx, tx, ev)
		})
	case payment.EventAccountUpdated:
		return s.payout.SyncExternalAccount(ctx, ev.AccountID)
	default:
		s.log.Debug("Ignoring webhook event", zap.String("type", ev.Type))
		return nil
	}
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*response.WebhookResponse, error) {
	ev, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		s.log.Warn("Rejected webhook", zap.Error(err))
		return nil, err
	}

	resp := &response.WebhookResponse{EventID: ev.ID, Type: ev.Type}

	claimed, err := s.dedup.Claim(ctx, ev.ID)
	if err != nil {
		// handlers are idempotent, so an unavailable dedup store only costs work
		s.log.Warn("Webhook dedup unavailable", zap.Error(err), zap.String("event_id", ev.ID))
		claimed = true
	}
	if !claimed {
		s.log.Info("Duplicate webhook", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		resp.Duplicate = true
		return resp, nil
	}

	if err := s.dispatch(ctx, ev); err != nil {
		switch apperror.CodeOf(err) {
		case apperror.CodeNotFound, apperror.CodeInvalidState:
			// redelivery would not change the outcome
			s.log.Warn("Webhook not applicable",
				zap.Error(err),
				zap.String("event_id", ev.ID),
				zap.String("type", ev.Type),
			)
			return resp, nil
		}

		if relErr := s.dedup.Release(ctx, ev.ID); relErr != nil {
			s.log.Error("Failed to release webhook claim", zap.Error(relErr), zap.String("event_id", ev.ID))
		}
		s.log.Error("Webhook processing failed",
			zap.Error(err),
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
		)
		return nil, err
	}

	s.log.Info("Webhook processed", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
	return resp, nil
}
