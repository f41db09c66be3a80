package adaptor

import (
	"net/http"

	"courier-booking/internal/dto/request"
	"courier-booking/internal/usecase"
	"courier-booking/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type FeeHandler struct {
	service usecase.CommissionService
	log     *zap.Logger
}

func NewFeeHandler(service usecase.CommissionService, log *zap.Logger) *FeeHandler {
	return &FeeHandler{
		service: service,
		log:     log.With(zap.String("handler", "fee")),
	}
}

// Preview handles GET /api/fees/preview?amount=&requester_id=
func (h *FeeHandler) Preview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	amount, err := decimal.NewFromString(query.Get("amount"))
	if err != nil {
		utils.ResponseBadRequest(w, "amount must be a decimal number", nil)
		return
	}

	req := request.FeePreviewRequest{
		Amount:      amount,
		RequesterID: query.Get("requester_id"),
	}
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	quote, err := h.service.PreviewFees(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "preview fees")
		return
	}

	utils.ResponseSuccess(w, "success", quote)
}
