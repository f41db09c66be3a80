package wire

import (
	"courier-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

// wireBookingPayment mounts under /api/bookings/{id}, behind auth.
func wireBookingPayment(r chi.Router, paymentHandler *adaptor.PaymentHandler) {
	r.Post("/payment", paymentHandler.Initiate)
	r.Post("/payment/confirm", paymentHandler.Confirm)
}

func wirePayment(r chi.Router, feeHandler *adaptor.FeeHandler, webhookHandler *adaptor.WebhookHandler) {
	r.Get("/api/fees/preview", feeHandler.Preview)

	// authenticated by signature, not by bearer token
	r.Post("/api/webhooks/payments", webhookHandler.Payments)
}
