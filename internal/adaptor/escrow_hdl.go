package adaptor

import (
	"net/http"

	"courier-booking/internal/dto/request"
	"courier-booking/internal/usecase"
	"courier-booking/pkg/utils"

	"go.uber.org/zap"
)

// EscrowHandler serves the admin escrow routes.
type EscrowHandler struct {
	service usecase.EscrowService
	log     *zap.Logger
}

func NewEscrowHandler(service usecase.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{
		service: service,
		log:     log.With(zap.String("handler", "escrow")),
	}
}

// Get handles GET /api/admin/escrow/{transactionID}
func (h *EscrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	transactionID, ok := int64Param(w, r, "transactionID")
	if !ok {
		return
	}

	record, err := h.service.GetByTransaction(r.Context(), actor, transactionID)
	if err != nil {
		handleServiceError(h.log, w, err, "get escrow")
		return
	}

	utils.ResponseSuccess(w, "success", record)
}

// Release handles POST /api/admin/escrow/{transactionID}/release
func (h *EscrowHandler) Release(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	transactionID, ok := int64Param(w, r, "transactionID")
	if !ok {
		return
	}

	var req request.ReleaseEscrowRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	record, err := h.service.Release(r.Context(), actor, transactionID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "release escrow")
		return
	}

	utils.ResponseSuccess(w, "Escrow released", record)
}

// Refund handles POST /api/admin/escrow/{transactionID}/refund
func (h *EscrowHandler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	transactionID, ok := int64Param(w, r, "transactionID")
	if !ok {
		return
	}

	var req request.RefundRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	record, err := h.service.Refund(r.Context(), actor, transactionID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "refund escrow")
		return
	}

	utils.ResponseSuccess(w, "Escrow refunded", record)
}
