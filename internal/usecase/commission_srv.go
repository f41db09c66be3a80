package usecase

import (
	"context"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
	"courier-booking/internal/dto/request"
	"courier-booking/internal/dto/response"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CommissionService interface {
	// CalculateFees quotes base for the requester, or for an anonymous
	// requester when requesterID is nil.
	CalculateFees(ctx context.Context, base decimal.Decimal, requesterID *uuid.UUID) (*entity.FeeQuote, error)
	ValidateCommission(ctx context.Context, base, claimedCommission decimal.Decimal, requesterID *uuid.UUID) (bool, error)
	PreviewFees(ctx context.Context, req *request.FeePreviewRequest) (*response.FeeQuoteResponse, error)
}

// All rates are percentage points.
var (
	pct = decimal.NewFromInt(100)

	rateTiers = []struct {
		from decimal.Decimal
		rate decimal.Decimal
	}{
		{decimal.NewFromInt(500), decimal.NewFromInt(10)},
		{decimal.NewFromInt(100), decimal.RequireFromString("12.5")},
		{decimal.Zero, decimal.NewFromInt(15)},
	}

	countDiscounts = []struct {
		atLeast  int64
		discount decimal.Decimal
	}{
		{50, decimal.NewFromInt(3)},
		{25, decimal.NewFromInt(2)},
		{10, decimal.NewFromInt(1)},
	}

	volumeDiscounts = []struct {
		atLeast  decimal.Decimal
		discount decimal.Decimal
	}{
		{decimal.NewFromInt(5000), decimal.RequireFromString("2.5")},
		{decimal.NewFromInt(2000), decimal.RequireFromString("1.5")},
		{decimal.NewFromInt(1000), decimal.NewFromInt(1)},
	}

	maxDiscount = decimal.NewFromInt(5)
	minRate     = decimal.NewFromInt(5)
)

const historyWindow = 12 // months

func tierRate(base decimal.Decimal) decimal.Decimal {
	for _, t := range rateTiers {
		if base.GreaterThanOrEqual(t.from) {
			return t.rate
		}
	}
	return rateTiers[len(rateTiers)-1].rate
}

// ComputeFees is the pure fee calculation. Count and volume discounts are
// summed, the sum is capped at five points and the resulting rate floored
// at five percent.
func ComputeFees(base decimal.Decimal, history entity.RequesterHistory) entity.FeeQuote {
	base = utils.RoundMoney(base)
	tier := tierRate(base)

	countDiscount := decimal.Zero
	for _, d := range countDiscounts {
		if history.CompletedBookings >= d.atLeast {
			countDiscount = d.discount
			break
		}
	}

	volumeDiscount := decimal.Zero
	for _, d := range volumeDiscounts {
		if history.CompletedVolume.GreaterThanOrEqual(d.atLeast) {
			volumeDiscount = d.discount
			break
		}
	}

	totalDiscount := decimal.Min(countDiscount.Add(volumeDiscount), maxDiscount)
	rate := decimal.Max(tier.Sub(totalDiscount), minRate)

	total := utils.RoundMoney(base.Mul(pct.Add(rate)).Div(pct))
	return entity.FeeQuote{
		BaseAmount:       base,
		Rate:             rate,
		CommissionAmount: total.Sub(base),
		TotalAmount:      total,
		CarrierAmount:    base,
		Breakdown: entity.FeeBreakdown{
			TierRate:          tier,
			CountDiscount:     countDiscount,
			VolumeDiscount:    volumeDiscount,
			TotalDiscount:     totalDiscount,
			CompletedBookings: history.CompletedBookings,
			CompletedVolume:   history.CompletedVolume,
		},
	}
}

// quoteFees reads the requester's trailing history through repo, which may
// be bound to an open transaction.
func quoteFees(ctx context.Context, repo *repository.Repository, now time.Time, base decimal.Decimal, requesterID *uuid.UUID) (*entity.FeeQuote, error) {
	history := entity.RequesterHistory{CompletedVolume: decimal.Zero}
	if requesterID != nil && *requesterID != uuid.Nil {
		h, err := repo.Booking.CompletedHistoryBySender(ctx, *requesterID, now.AddDate(0, -historyWindow, 0))
		if err != nil {
			return nil, err
		}
		history = h
	}

	quote := ComputeFees(base, history)
	return &quote, nil
}

// commissionMatches checks a claimed commission against the recomputed one
// and the quote's own arithmetic.
func commissionMatches(quote *entity.FeeQuote, claimed decimal.Decimal) bool {
	return utils.WithinTolerance(quote.CommissionAmount, claimed) &&
		utils.WithinTolerance(quote.BaseAmount.Add(quote.CommissionAmount), quote.TotalAmount) &&
		quote.CarrierAmount.Equal(quote.BaseAmount)
}

type commissionService struct {
	*engine
	log *zap.Logger
}

func NewCommissionService(e *engine) CommissionService {
	return &commissionService{
		engine: e,
		log:    e.log.With(zap.String("service", "commission")),
	}
}

func (s *commissionService) CalculateFees(ctx context.Context, base decimal.Decimal, requesterID *uuid.UUID) (*entity.FeeQuote, error) {
	if !base.IsPositive() {
		return nil, apperror.InvalidInput("amount must be greater than zero")
	}
	return quoteFees(ctx, s.repo, s.clock(), base, requesterID)
}

func (s *commissionService) ValidateCommission(ctx context.Context, base, claimedCommission decimal.Decimal, requesterID *uuid.UUID) (bool, error) {
	quote, err := s.CalculateFees(ctx, base, requesterID)
	if err != nil {
		return false, err
	}
	ok := commissionMatches(quote, claimedCommission)
	if !ok {
		s.log.Warn("Commission mismatch",
			zap.String("base", base.String()),
			zap.String("claimed", claimedCommission.String()),
			zap.String("expected", quote.CommissionAmount.String()),
		)
	}
	return ok, nil
}

func (s *commissionService) PreviewFees(ctx context.Context, req *request.FeePreviewRequest) (*response.FeeQuoteResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.InvalidInput("%s", utils.FormatValidationErrors(errs))
	}

	var requesterID *uuid.UUID
	if req.RequesterID != "" {
		id, err := uuid.Parse(req.RequesterID)
		if err != nil {
			return nil, apperror.InvalidInput("invalid requester id %s", req.RequesterID)
		}
		requesterID = &id
	}

	quote, err := s.CalculateFees(ctx, req.Amount, requesterID)
	if err != nil {
		return nil, err
	}
	return response.FeeQuoteToResponse(quote), nil
}
