package adaptor

import (
	"io"
	"net/http"

	"courier-booking/internal/usecase"
	"courier-booking/pkg/utils"

	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// Signature headers, in lookup order.
var signatureHeaders = []string{"Payment-Signature", "Stripe-Signature"}

type WebhookHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewWebhookHandler(service usecase.PaymentService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log.With(zap.String("handler", "webhook")),
	}
}

// Payments handles POST /api/webhooks/payments (public, signed)
func (h *WebhookHandler) Payments(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Unreadable webhook body", nil)
		return
	}

	var signature string
	for _, header := range signatureHeaders {
		if signature = r.Header.Get(header); signature != "" {
			break
		}
	}
	if signature == "" {
		utils.ResponseBadRequest(w, "Missing webhook signature", nil)
		return
	}

	result, err := h.service.HandleWebhook(r.Context(), payload, signature)
	if err != nil {
		handleServiceError(h.log, w, err, "handle webhook")
		return
	}

	utils.ResponseSuccess(w, "received", result)
}
