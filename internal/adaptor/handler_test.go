package adaptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"courier-booking/internal/dto/request"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/utils"

	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid input", apperror.InvalidInput("weight must be positive"), http.StatusBadRequest, "INVALID_INPUT", "weight must be positive"},
		{"invalid state", apperror.InvalidState("cannot move"), http.StatusConflict, "INVALID_STATE", "cannot move"},
		{"already accepted", apperror.New(apperror.CodeAlreadyAccepted, "taken"), http.StatusConflict, "ALREADY_ACCEPTED", "taken"},
		{"over release", apperror.New(apperror.CodeOverRelease, "too much"), http.StatusConflict, "OVER_RELEASE", "too much"},
		{"declined", apperror.New(apperror.CodeProcessorRejected, "card declined"), http.StatusPaymentRequired, "PROCESSOR_REJECTED", "card declined"},
		{"unavailable", apperror.New(apperror.CodeProcessorUnavailable, "try later"), http.StatusServiceUnavailable, "PROCESSOR_UNAVAILABLE", "try later"},
		{"wrapped", fmt.Errorf("accept: %w", apperror.NotFound("booking 7 not found")), http.StatusNotFound, "NOT_FOUND", "booking 7 not found"},
		{"internal", errors.New("connection reset by peer"), http.StatusInternalServerError, "INTERNAL", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(zap.NewNop(), rec, tt.err, "test")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body utils.Response
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status || body.Code != tt.wantCode || body.Message != tt.wantMsg {
				t.Fatalf("body = %+v, want code %s message %q", body, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		chunked    bool
		optional   bool
		wantOK     bool
		wantStatus int
	}{
		{"empty optional", "", false, true, true, http.StatusOK},
		{"empty chunked optional", "", true, true, true, http.StatusOK},
		{"empty chunked required", "", true, false, false, http.StatusBadRequest},
		{"chunked json", `{"final_price":"75.50"}`, true, true, true, http.StatusOK},
		{"malformed optional", `{"final_price":`, true, true, false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/bookings/1/accept", strings.NewReader(tt.body))
			if tt.chunked {
				r.ContentLength = -1
			}
			rec := httptest.NewRecorder()

			var req request.AcceptBookingRequest
			if got := decodeBody(rec, r, &req, tt.optional); got != tt.wantOK {
				t.Fatalf("decodeBody = %v, want %v", got, tt.wantOK)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.body != "" && tt.wantOK && (req.FinalPrice == nil || req.FinalPrice.String() != "75.5") {
				t.Fatalf("expected parsed final price, got %v", req.FinalPrice)
			}
		})
	}
}
