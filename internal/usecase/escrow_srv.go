package usecase

import (
	"context"
	"fmt"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
	"courier-booking/internal/dto/request"
	"courier-booking/internal/dto/response"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/payment"
	"courier-booking/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EscrowService is the admin surface of the escrow ledger.
type EscrowService interface {
	GetByTransaction(ctx context.Context, actor Actor, transactionID int64) (*response.EscrowResponse, error)
	// Release pays part of the held funds out to the carrier. Only allowed
	// once delivery is confirmed or while a dispute is open.
	Release(ctx context.Context, actor Actor, transactionID int64, req *request.ReleaseEscrowRequest) (*response.EscrowResponse, error)
	// Refund reverses the charge and cancels the booking.
	Refund(ctx context.Context, actor Actor, transactionID int64, req *request.RefundRequest) (*response.EscrowResponse, error)
}

// hold opens the escrow record for a succeeded transaction.
func (e *engine) hold(ctx context.Context, tx *repository.Repository, txn *entity.Transaction, amount decimal.Decimal, reason string) (*entity.EscrowRecord, error) {
	if existing, err := tx.Escrow.FindByTransactionID(ctx, txn.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	now := e.clock()
	record := &entity.EscrowRecord{
		Base:           entity.Base{CreatedAt: now, UpdatedAt: now},
		TransactionID:  txn.ID,
		AmountHeld:     utils.RoundMoney(amount),
		AmountReleased: decimal.Zero,
		Status:         entity.EscrowStatusHolding,
		HoldReason:     reason,
	}
	if err := tx.Escrow.Create(ctx, record); err != nil {
		return nil, err
	}

	e.log.Info("Funds held in escrow",
		zap.Int64("transaction_id", txn.ID),
		zap.String("amount", record.AmountHeld.String()),
	)
	return record, nil
}

// release locks the escrow row, pays amount to the destination account and
// records it. Any failure leaves the record untouched.
func (e *engine) release(ctx context.Context, tx *repository.Repository, txn *entity.Transaction, amount decimal.Decimal, destination, notes string) (*entity.EscrowRecord, error) {
	record, err := tx.Escrow.FindByTransactionIDForUpdate(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status == entity.EscrowStatusRefunded {
		return nil, apperror.NotFound("no held funds for transaction %d", txn.ID)
	}

	amount = utils.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, apperror.InvalidInput("release amount must be greater than zero")
	}
	if record.AmountReleased.Add(amount).GreaterThan(record.AmountHeld) {
		return nil, apperror.New(apperror.CodeOverRelease,
			"releasing %s would exceed held %s (already released %s)", amount, record.AmountHeld, record.AmountReleased)
	}

	transfer, err := e.gateway.CreateTransfer(ctx, payment.TransferRequest{
		Amount:         amount,
		Currency:       txn.Currency,
		DestinationID:  destination,
		TransferGroup:  txn.PaymentIntentID,
		IdempotencyKey: fmt.Sprintf("release-%d-%s", txn.ID, record.AmountReleased.StringFixed(2)),
	})
	if err != nil {
		return nil, err
	}

	now := e.clock()
	record.AmountReleased = record.AmountReleased.Add(amount)
	record.Status = entity.EscrowStatusFor(record.AmountHeld, record.AmountReleased)
	record.TransferID = &transfer.ID
	record.ReleasedAt = &now
	record.UpdatedAt = now
	if notes != "" {
		record.ReleaseNotes = &notes
	}
	if err := tx.Escrow.Update(ctx, record); err != nil {
		return nil, err
	}

	e.log.Info("Escrow released",
		zap.Int64("transaction_id", txn.ID),
		zap.String("amount", amount.String()),
		zap.String("released_total", record.AmountReleased.String()),
		zap.String("status", string(record.Status)),
		zap.String("transfer_id", transfer.ID),
	)
	return record, nil
}

// refund reverses a succeeded transaction. A refund and a release are
// mutually exclusive: once any amount was released the refund is refused.
func (e *engine) refund(ctx context.Context, tx *repository.Repository, txn *entity.Transaction, amount decimal.Decimal, reason string) (*entity.EscrowRecord, error) {
	if txn.Status == entity.TransactionStatusRefunded {
		return nil, apperror.InvalidState("transaction %d is already refunded", txn.ID)
	}
	if txn.Status != entity.TransactionStatusSucceeded {
		return nil, apperror.InvalidState("transaction %d is %s and cannot be refunded", txn.ID, txn.Status)
	}

	record, err := tx.Escrow.FindByTransactionIDForUpdate(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if record != nil && record.AmountReleased.IsPositive() {
		return nil, apperror.InvalidState("transaction %d already released %s to the carrier", txn.ID, record.AmountReleased)
	}

	if amount.IsZero() {
		amount = txn.GrossAmount
	}
	amount = utils.RoundMoney(amount)
	if !amount.IsPositive() || amount.GreaterThan(txn.GrossAmount) {
		return nil, apperror.InvalidInput("refund amount must be between 0 and %s", txn.GrossAmount)
	}

	refund, err := e.gateway.CreateRefund(ctx, payment.RefundRequest{
		PaymentIntentID: txn.PaymentIntentID,
		Amount:          amount,
		Reason:          reason,
		IdempotencyKey:  fmt.Sprintf("refund-%d", txn.ID),
	})
	if err != nil {
		return nil, err
	}

	return e.recordRefund(ctx, tx, txn, record, refund.ID, refund.Amount)
}

// recordRefund books a refund that already happened at the processor.
func (e *engine) recordRefund(ctx context.Context, tx *repository.Repository, txn *entity.Transaction, record *entity.EscrowRecord, refundID string, amount decimal.Decimal) (*entity.EscrowRecord, error) {
	now := e.clock()
	txn.Status = entity.TransactionStatusRefunded
	txn.RefundID = &refundID
	txn.RefundedAmount = amount
	txn.UpdatedAt = now
	if err := tx.Transaction.Update(ctx, txn); err != nil {
		return nil, err
	}

	if record != nil {
		record.Status = entity.EscrowStatusRefunded
		record.UpdatedAt = now
		if err := tx.Escrow.Update(ctx, record); err != nil {
			return nil, err
		}
	}

	e.log.Info("Transaction refunded",
		zap.Int64("transaction_id", txn.ID),
		zap.String("refund_id", refundID),
		zap.String("amount", amount.String()),
	)
	return record, nil
}

// carrierDestination returns the carrier's active payout account id.
func carrierDestination(ctx context.Context, tx *repository.Repository, b *entity.Booking) (string, error) {
	account, err := tx.PayoutAccount.FindLiveByUserID(ctx, b.CarrierID)
	if err != nil {
		return "", err
	}
	if account == nil || account.Status != entity.PayoutAccountActive {
		return "", apperror.InvalidState("carrier has no active payout account")
	}
	return account.ExternalAccountID, nil
}

type escrowService struct {
	*engine
	log *zap.Logger
}

func NewEscrowService(e *engine) EscrowService {
	return &escrowService{
		engine: e,
		log:    e.log.With(zap.String("service", "escrow")),
	}
}

func (s *escrowService) GetByTransaction(ctx context.Context, actor Actor, transactionID int64) (*response.EscrowResponse, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("admin only")
	}
	record, err := s.repo.Escrow.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperror.NotFound("no escrow record for transaction %d", transactionID)
	}
	return response.EscrowToResponse(record), nil
}

// lockTransaction loads the transaction and its booking under lock. The
// booking row is always locked before the transaction row.
func lockTransaction(ctx context.Context, tx *repository.Repository, transactionID int64) (*entity.Transaction, *entity.Booking, error) {
	txn, err := tx.Transaction.FindByID(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	if txn == nil {
		return nil, nil, apperror.NotFound("transaction %d not found", transactionID)
	}
	return lockPair(ctx, tx, txn)
}

func lockPair(ctx context.Context, tx *repository.Repository, txn *entity.Transaction) (*entity.Transaction, *entity.Booking, error) {
	booking, err := tx.Booking.FindByIDForUpdate(ctx, txn.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking == nil {
		return nil, nil, apperror.NotFound("booking %d not found", txn.BookingID)
	}
	txn, err = tx.Transaction.FindByIDForUpdate(ctx, txn.ID)
	if err != nil {
		return nil, nil, err
	}
	return txn, booking, nil
}

func (s *escrowService) Release(ctx context.Context, actor Actor, transactionID int64, req *request.ReleaseEscrowRequest) (*response.EscrowResponse, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("admin only")
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.InvalidInput("%s", utils.FormatValidationErrors(errs))
	}

	var out *entity.EscrowRecord
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		txn, booking, err := lockTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if booking.Status != entity.BookingStatusDelivered && booking.Status != entity.BookingStatusDisputed {
			return apperror.InvalidState("funds can only be released after delivery or during a dispute, booking is %s", booking.Status)
		}

		destination, err := carrierDestination(ctx, tx, booking)
		if err != nil {
			return err
		}

		notes := ""
		if req.Notes != nil {
			notes = *req.Notes
		}
		out, err = s.release(ctx, tx, txn, req.Amount, destination, notes)
		if err != nil {
			return err
		}

		released := utils.RoundMoney(req.Amount)
		return s.stage(ctx, tx, booking, eventbus.TypeFundsReleased, actor,
			fmt.Sprintf("release-%s", out.AmountReleased.StringFixed(2)),
			&eventbus.Amounts{Currency: txn.Currency, Amount: released, CarrierNet: &released})
	})
	if err != nil {
		return nil, err
	}
	return response.EscrowToResponse(out), nil
}

func (s *escrowService) Refund(ctx context.Context, actor Actor, transactionID int64, req *request.RefundRequest) (*response.EscrowResponse, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("admin only")
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.InvalidInput("%s", utils.FormatValidationErrors(errs))
	}

	var out *entity.EscrowRecord
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		txn, booking, err := lockTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		out, err = s.refundBooking(ctx, tx, booking, txn, actor, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, apperror.NotFound("no escrow record for transaction %d", transactionID)
	}
	return response.EscrowToResponse(out), nil
}

// refundBooking refunds txn and cancels the locked booking through the
// refund edge of the transition table.
func (e *engine) refundBooking(ctx context.Context, tx *repository.Repository, b *entity.Booking, txn *entity.Transaction, actor Actor, req *request.RefundRequest) (*entity.EscrowRecord, error) {
	// check the edge before any money moves
	if _, err := lookupRule(b.Status, entity.BookingStatusCancelled); err != nil {
		return nil, err
	}
	if b.Status != entity.BookingStatusPaid && b.Status != entity.BookingStatusDisputed {
		return nil, apperror.InvalidState("booking in %s cannot be refunded", b.Status)
	}

	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	}
	record, err := e.refund(ctx, tx, txn, amount, req.Reason)
	if err != nil {
		return nil, err
	}

	refunded := txn.RefundedAmount
	err = e.apply(ctx, tx, b, move{
		to:      entity.BookingStatusCancelled,
		actor:   actor,
		reason:  req.Reason,
		money:   moneyRefund,
		amounts: &eventbus.Amounts{Currency: txn.Currency, Amount: refunded},
		extra:   refundExtraEvents(b.Status),
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// refundExtraEvents adds payment.refunded where the rule does not already.
func refundExtraEvents(from entity.BookingStatus) []string {
	rule, _ := lookupRule(from, entity.BookingStatusCancelled)
	for _, ev := range rule.events {
		if ev == eventbus.TypePaymentRefunded {
			return nil
		}
	}
	return []string{eventbus.TypePaymentRefunded}
}
