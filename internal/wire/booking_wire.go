package wire

import (
	"net/http"

	"courier-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	paymentHandler *adaptor.PaymentHandler,
	auth func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/api/bookings", bookingHandler.CreateBooking)
		r.Get("/api/user/bookings", bookingHandler.ListUserBookings)
		r.Get("/api/trips/{tripID}/bookings", bookingHandler.ListTripBookings)

		r.Route("/api/bookings/{id}", func(r chi.Router) {
			r.Get("/", bookingHandler.GetBooking)
			r.Get("/history", bookingHandler.GetHistory)

			r.Post("/negotiations", bookingHandler.ProposeNegotiation)
			r.Post("/negotiations/{negotiationID}/accept", bookingHandler.AcceptNegotiation)

			r.Post("/accept", bookingHandler.Accept)
			r.Post("/reject", bookingHandler.Reject)
			r.Post("/in-transit", bookingHandler.MarkInTransit)
			r.Post("/delivered", bookingHandler.MarkDelivered)
			r.Post("/complete", bookingHandler.Complete)
			r.Post("/cancel", bookingHandler.Cancel)
			r.Post("/dispute", bookingHandler.Dispute)

			wireBookingPayment(r, paymentHandler)
		})
	})
}
