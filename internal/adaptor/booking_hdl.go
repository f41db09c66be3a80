package adaptor

import (
	"net/http"

	"courier-booking/internal/dto/request"
	"courier-booking/internal/dto/response"
	"courier-booking/internal/usecase"
	"courier-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

func paginationFrom(r *http.Request) *request.PaginatedRequest {
	query := r.URL.Query()
	return &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking created", booking)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// ListUserBookings handles GET /api/user/bookings
func (h *BookingHandler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.ListUserBookings(r.Context(), actor, paginationFrom(r))
	if err != nil {
		handleServiceError(h.log, w, err, "list user bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// ListTripBookings handles GET /api/trips/{tripID}/bookings
func (h *BookingHandler) ListTripBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.ListTripBookings(r.Context(), actor, chi.URLParam(r, "tripID"), paginationFrom(r))
	if err != nil {
		handleServiceError(h.log, w, err, "list trip bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetHistory handles GET /api/bookings/{id}/history
func (h *BookingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	history, err := h.service.GetBookingHistory(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get booking history")
		return
	}

	utils.ResponseSuccess(w, "success", history)
}

// ProposeNegotiation handles POST /api/bookings/{id}/negotiations
func (h *BookingHandler) ProposeNegotiation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.ProposeNegotiationRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	negotiation, err := h.service.ProposeNegotiation(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "propose negotiation")
		return
	}

	utils.ResponseCreated(w, "Offer recorded", negotiation)
}

// AcceptNegotiation handles POST /api/bookings/{id}/negotiations/{negotiationID}/accept
func (h *BookingHandler) AcceptNegotiation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	negotiationID, ok := int64Param(w, r, "negotiationID")
	if !ok {
		return
	}

	booking, err := h.service.AcceptNegotiation(r.Context(), actor, chi.URLParam(r, "id"), negotiationID)
	if err != nil {
		handleServiceError(h.log, w, err, "accept negotiation")
		return
	}

	utils.ResponseSuccess(w, "Offer accepted", booking)
}

// Accept handles POST /api/bookings/{id}/accept
func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.AcceptBookingRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	booking, err := h.service.AcceptBooking(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "accept booking")
		return
	}

	utils.ResponseSuccess(w, "Booking accepted", booking)
}

// Reject handles POST /api/bookings/{id}/reject
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.RejectBookingRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	booking, err := h.service.RejectBooking(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "reject booking")
		return
	}

	utils.ResponseSuccess(w, "Booking rejected", booking)
}

// MarkInTransit handles POST /api/bookings/{id}/in-transit
func (h *BookingHandler) MarkInTransit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	booking, err := h.service.MarkInTransit(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "mark in transit")
		return
	}

	utils.ResponseSuccess(w, "Package in transit", booking)
}

// MarkDelivered handles POST /api/bookings/{id}/delivered
func (h *BookingHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	booking, err := h.service.MarkDelivered(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "mark delivered")
		return
	}

	utils.ResponseSuccess(w, "Package delivered", booking)
}

// Complete handles POST /api/bookings/{id}/complete
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	booking, err := h.service.CompleteBooking(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "complete booking")
		return
	}

	utils.ResponseSuccess(w, "Booking completed", booking)
}

// Cancel handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CancelBookingRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", booking)
}

// Dispute handles POST /api/bookings/{id}/dispute
func (h *BookingHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.DisputeBookingRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	booking, err := h.service.OpenDispute(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "open dispute")
		return
	}

	utils.ResponseSuccess(w, "Dispute opened", booking)
}

// ==================== ADMIN METHODS ====================

// Refund handles POST /api/admin/bookings/{id}/refund (admin only)
func (h *BookingHandler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.RefundRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	booking, err := h.service.RefundBooking(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "refund booking")
		return
	}

	utils.ResponseSuccess(w, "Booking refunded", booking)
}

// ExpireStale handles POST /api/admin/bookings/expire (admin only)
func (h *BookingHandler) ExpireStale(w http.ResponseWriter, r *http.Request) {
	expired, err := h.service.ExpireStalePendingBookings(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err, "expire stale bookings")
		return
	}

	utils.ResponseSuccess(w, "success", response.ExpirySweepResponse{Expired: expired})
}
