// internal/wire/wire.go
package wire

import (
	"net/http"

	"courier-booking/internal/adaptor"
	"courier-booking/internal/data/repository"
	"courier-booking/internal/usecase"
	"courier-booking/pkg/cache"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/middleware"
	"courier-booking/pkg/payment"
	"courier-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the router and the services behind it
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds the services and handlers and mounts the routes
func Wiring(
	repo *repository.Repository,
	gateway payment.Gateway,
	dedup cache.Deduper,
	publisher eventbus.Publisher,
	config *utils.Config,
	logger *zap.Logger,
	opts ...usecase.Option,
) *App {
	service := usecase.NewService(repo, gateway, dedup, publisher, config, logger, opts...)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:  setupRouter(handler, config, logger),
		Service: service,
	}
}

// setupRouter configures the chi router
func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	auth := middleware.Auth(config.JWT.Secret, logger)

	wireBooking(r, handler.Booking, handler.Payment, auth)
	wirePayment(r, handler.Fee, handler.Webhook)
	wirePayout(r, handler.Payout, auth)
	wireAdmin(r, handler.Booking, handler.Escrow, auth, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.ResponseSuccess(w, "OK", nil)
	})

	return r
}
