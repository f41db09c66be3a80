package wire

import (
	"net/http"

	"courier-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wirePayout(r chi.Router, payoutHandler *adaptor.PayoutHandler, auth func(http.Handler) http.Handler) {
	r.Route("/api/payouts/account", func(r chi.Router) {
		r.Use(auth)

		r.Get("/", payoutHandler.GetAccount)
		r.Post("/", payoutHandler.CreateAccount)
		r.Post("/onboarding-link", payoutHandler.OnboardingLink)
		r.Post("/refresh", payoutHandler.Refresh)
	})
}
