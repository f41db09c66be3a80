package adaptor

import (
	"net/http"

	"courier-booking/internal/usecase"
	"courier-booking/pkg/utils"

	"go.uber.org/zap"
)

type PayoutHandler struct {
	service usecase.PayoutService
	log     *zap.Logger
}

func NewPayoutHandler(service usecase.PayoutService, log *zap.Logger) *PayoutHandler {
	return &PayoutHandler{
		service: service,
		log:     log.With(zap.String("handler", "payout")),
	}
}

// GetAccount handles GET /api/payouts/account
func (h *PayoutHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), actor)
	if err != nil {
		handleServiceError(h.log, w, err, "get payout account")
		return
	}

	utils.ResponseSuccess(w, "success", account)
}

// CreateAccount handles POST /api/payouts/account
func (h *PayoutHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	account, err := h.service.CreateAccount(r.Context(), actor)
	if err != nil {
		handleServiceError(h.log, w, err, "create payout account")
		return
	}

	utils.ResponseCreated(w, "Payout account ready", account)
}

// OnboardingLink handles POST /api/payouts/account/onboarding-link
func (h *PayoutHandler) OnboardingLink(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	account, err := h.service.CreateOnboardingLink(r.Context(), actor)
	if err != nil {
		handleServiceError(h.log, w, err, "create onboarding link")
		return
	}

	utils.ResponseSuccess(w, "success", account)
}

// Refresh handles POST /api/payouts/account/refresh
func (h *PayoutHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	account, err := h.service.RefreshStatus(r.Context(), actor)
	if err != nil {
		handleServiceError(h.log, w, err, "refresh payout account")
		return
	}

	utils.ResponseSuccess(w, "success", account)
}
