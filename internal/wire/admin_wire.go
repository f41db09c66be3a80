package wire

import (
	"net/http"

	"courier-booking/internal/adaptor"
	"courier-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAdmin(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	escrowHandler *adaptor.EscrowHandler,
	auth func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	r.Route("/api/admin", func(r chi.Router) {
		// Require both authentication AND admin role
		r.Use(auth)
		r.Use(middleware.Admin(log))

		r.Get("/escrow/{transactionID}", escrowHandler.Get)
		r.Post("/escrow/{transactionID}/release", escrowHandler.Release)
		r.Post("/escrow/{transactionID}/refund", escrowHandler.Refund)

		r.Post("/bookings/expire", bookingHandler.ExpireStale)
		r.Post("/bookings/{id}/refund", bookingHandler.Refund)
	})
}
