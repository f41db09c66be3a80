package adaptor

import (
	"net/http"

	"courier-booking/internal/dto/request"
	"courier-booking/internal/usecase"
	"courier-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// Initiate handles POST /api/bookings/{id}/payment
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	txn, err := h.service.InitiatePayment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "initiate payment")
		return
	}

	utils.ResponseCreated(w, "Payment initiated", txn)
}

// Confirm handles POST /api/bookings/{id}/payment/confirm
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.ConfirmPaymentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	txn, err := h.service.ConfirmPayment(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "confirm payment")
		return
	}

	utils.ResponseSuccess(w, "Payment "+string(txn.Status), txn)
}
