package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"courier-booking/internal/usecase"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Booking *BookingHandler
	Payment *PaymentHandler
	Fee     *FeeHandler
	Escrow  *EscrowHandler
	Payout  *PayoutHandler
	Webhook *WebhookHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking: NewBookingHandler(service.Booking, log),
		Payment: NewPaymentHandler(service.Payment, log),
		Fee:     NewFeeHandler(service.Commission, log),
		Escrow:  NewEscrowHandler(service.Escrow, log),
		Payout:  NewPayoutHandler(service.Payout, log),
		Webhook: NewWebhookHandler(service.Payment, log),
	}
}

// actorFrom reads the caller set by the auth middleware.
func actorFrom(w http.ResponseWriter, r *http.Request) (usecase.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return usecase.Actor{}, false
	}

	role, _ := utils.GetRoleFromContext(r.Context())
	if role == "" {
		role = utils.RoleUser
	}
	return usecase.Actor{ID: userID, Role: role}, true
}

// decodeBody parses and validates a JSON body. An empty body is accepted when
// optional is set, leaving dst at its zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if r.ContentLength == 0 && optional {
		return true
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// chunked requests report an unknown length, so an empty body only
		// shows up as EOF
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}

	if validationErrors := utils.ValidateStruct(dst); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return false
	}
	return true
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		utils.ResponseBadRequest(w, "Invalid "+name, nil)
		return 0, false
	}
	return id, true
}

// handleServiceError maps a service failure onto the response envelope.
// Client errors are logged at warn, everything else at error.
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	code := apperror.CodeOf(err)
	status := apperror.HTTPStatus(code)

	if status >= http.StatusInternalServerError {
		log.Error("Failed to "+operation,
			zap.Error(err),
			zap.String("operation", operation),
			zap.String("code", string(code)))
	} else {
		log.Warn(operation+" failed",
			zap.Error(err),
			zap.String("operation", operation),
			zap.String("code", string(code)))
	}

	utils.ResponseError(w, status, string(code), apperror.MessageOf(err))
}
