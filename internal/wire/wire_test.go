package wire

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository/memstore"
	"courier-booking/pkg/cache"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/middleware"
	"courier-booking/pkg/payment"
	"courier-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testSecret = "test-jwt-secret"

type envelope struct {
	Status  bool            `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  map[string]any  `json:"errors"`
}

type apiFixture struct {
	t       *testing.T
	server  *httptest.Server
	gateway *payment.SimulatedGateway
	trip    entity.Trip

	senderID, carrierID, adminID uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo, store := memstore.New()
	f := &apiFixture{
		t:         t,
		gateway:   payment.NewSimulatedGateway("whsec_test"),
		senderID:  uuid.New(),
		carrierID: uuid.New(),
		adminID:   uuid.New(),
	}
	f.trip = entity.Trip{
		ID:              uuid.New(),
		TravelerID:      f.carrierID,
		Origin:          "Porto",
		Destination:     "Madrid",
		DepartureDate:   time.Now().AddDate(0, 0, 5),
		AvailableWeight: decimal.NewFromInt(10),
		Status:          "published",
	}
	store.AddTrip(f.trip)
	store.AddUser(entity.User{ID: f.senderID, Email: "s@example.com", Role: utils.RoleUser})
	store.AddUser(entity.User{ID: f.carrierID, Email: "c@example.com", Role: utils.RoleUser})

	config := &utils.Config{
		JWT:     utils.JWTConfig{Secret: testSecret},
		Payment: utils.PaymentConfig{Currency: "usd"},
		Booking: utils.BookingConfig{ExpiryDays: 7},
		Events:  utils.EventsConfig{BatchSize: 100},
	}
	app := Wiring(repo, f.gateway, cache.NewMemoryDeduper(time.Hour), eventbus.NewMemoryPublisher(), config, zap.NewNop())

	f.server = httptest.NewServer(app.Router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) token(userID uuid.UUID, role string) string {
	f.t.Helper()
	token, err := middleware.IssueToken(testSecret, userID, role, time.Hour)
	if err != nil {
		f.t.Fatalf("issue token: %v", err)
	}
	return token
}

func (f *apiFixture) do(method, path, token string, body any) (int, envelope) {
	f.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			f.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		f.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	if err != nil {
		f.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		f.t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func (f *apiFixture) createBooking() string {
	f.t.Helper()
	status, env := f.do(http.MethodPost, "/api/bookings", f.token(f.senderID, utils.RoleUser), map[string]any{
		"trip_id":             f.trip.ID.String(),
		"carrier_id":          f.carrierID.String(),
		"package_description": "Ceramic vase",
		"weight":              "2",
		"proposed_price":      "80.00",
		"pickup_address":      "Rua das Flores 3, Porto",
		"delivery_address":    "Calle Mayor 10, Madrid",
	})
	if status != http.StatusCreated {
		f.t.Fatalf("create booking: status %d code %s message %s", status, env.Code, env.Message)
	}

	var booking struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &booking); err != nil {
		f.t.Fatalf("decode booking: %v", err)
	}
	if booking.Status != "pending" {
		f.t.Fatalf("new booking status = %s, want pending", booking.Status)
	}
	return strconv.FormatInt(booking.ID, 10)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(http.MethodGet, "/health", "", nil)
	if status != http.StatusOK || !env.Status {
		t.Fatalf("health = %d %+v", status, env)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: func() string {
			tok, _ := middleware.IssueToken("other-secret", f.senderID, utils.RoleUser, time.Hour)
			return tok
		}()},
		{name: "expired", token: func() string {
			tok, _ := middleware.IssueToken(testSecret, f.senderID, utils.RoleUser, -time.Minute)
			return tok
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := f.do(http.MethodGet, "/api/user/bookings", tt.token, nil)
			if status != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", status)
			}
			if env.Code != "UNAUTHORIZED" {
				t.Fatalf("code = %s, want UNAUTHORIZED", env.Code)
			}
		})
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(http.MethodPost, "/api/admin/bookings/expire", f.token(f.senderID, utils.RoleUser), nil)
	if status != http.StatusForbidden || env.Code != "FORBIDDEN" {
		t.Fatalf("non-admin expire = %d %s", status, env.Code)
	}

	status, env = f.do(http.MethodPost, "/api/admin/bookings/expire", f.token(f.adminID, utils.RoleAdmin), nil)
	if status != http.StatusOK {
		t.Fatalf("admin expire = %d %s", status, env.Message)
	}
	var sweep struct {
		Expired int `json:"expired"`
	}
	if err := json.Unmarshal(env.Data, &sweep); err != nil {
		t.Fatalf("decode sweep: %v", err)
	}
	if sweep.Expired != 0 {
		t.Fatalf("expired = %d, want 0", sweep.Expired)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(http.MethodPost, "/api/bookings", f.token(f.senderID, utils.RoleUser), map[string]any{
		"trip_id":        f.trip.ID.String(),
		"carrier_id":     "not-a-uuid",
		"weight":         "2",
		"proposed_price": "80",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if env.Code != "INVALID_INPUT" {
		t.Fatalf("code = %s, want INVALID_INPUT", env.Code)
	}
	if _, ok := env.Errors["carrier_id"]; !ok {
		t.Fatalf("errors = %v, want carrier_id entry", env.Errors)
	}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	sender := f.token(f.senderID, utils.RoleUser)
	carrier := f.token(f.carrierID, utils.RoleUser)

	id := f.createBooking()

	// sender cannot accept their own request
	if status, env := f.do(http.MethodPost, "/api/bookings/"+id+"/accept", sender, nil); status != http.StatusForbidden {
		t.Fatalf("sender accept = %d %s", status, env.Code)
	}

	if status, env := f.do(http.MethodPost, "/api/bookings/"+id+"/accept", carrier, nil); status != http.StatusOK {
		t.Fatalf("accept = %d %s %s", status, env.Code, env.Message)
	}

	status, env := f.do(http.MethodPost, "/api/bookings/"+id+"/accept", carrier, nil)
	if status != http.StatusConflict || env.Code != "ALREADY_ACCEPTED" {
		t.Fatalf("second accept = %d %s, want 409 ALREADY_ACCEPTED", status, env.Code)
	}

	status, env = f.do(http.MethodPost, "/api/bookings/"+id+"/payment", sender, nil)
	if status != http.StatusCreated {
		t.Fatalf("initiate = %d %s %s", status, env.Code, env.Message)
	}
	var txn struct {
		PaymentIntentID string `json:"payment_intent_id"`
		ClientSecret    string `json:"client_secret"`
		GrossAmount     string `json:"gross_amount"`
		Status          string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &txn); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if txn.PaymentIntentID == "" || txn.ClientSecret == "" {
		t.Fatalf("transaction = %+v, want intent and client secret", txn)
	}
	if !decimal.RequireFromString(txn.GrossAmount).Equal(decimal.RequireFromString("92")) {
		t.Fatalf("gross = %s, want 92 (80 + 15%%)", txn.GrossAmount)
	}

	status, env = f.do(http.MethodPost, "/api/bookings/"+id+"/payment/confirm", sender,
		map[string]string{"payment_method": "pm_card_visa"})
	if status != http.StatusOK {
		t.Fatalf("confirm = %d %s %s", status, env.Code, env.Message)
	}

	for _, step := range []string{"in-transit", "delivered"} {
		if status, env := f.do(http.MethodPost, "/api/bookings/"+id+"/"+step, carrier, nil); status != http.StatusOK {
			t.Fatalf("%s = %d %s %s", step, status, env.Code, env.Message)
		}
	}

	status, env = f.do(http.MethodGet, "/api/bookings/"+id+"/history", sender, nil)
	if status != http.StatusOK {
		t.Fatalf("history = %d %s", status, env.Code)
	}
	var history []struct {
		Seq      int64  `json:"seq"`
		ToStatus string `json:"to_status"`
	}
	if err := json.Unmarshal(env.Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	want := []string{"pending", "accepted", "payment_pending", "paid", "in_transit", "delivered"}
	if len(history) != len(want) {
		t.Fatalf("history has %d entries, want %d", len(history), len(want))
	}
	for i, entry := range history {
		if entry.Seq != int64(i+1) || entry.ToStatus != want[i] {
			t.Fatalf("history[%d] = %+v, want seq %d to %s", i, entry, i+1, want[i])
		}
	}

	// an outsider sees nothing
	stranger := f.token(uuid.New(), utils.RoleUser)
	if status, _ := f.do(http.MethodGet, "/api/bookings/"+id, stranger, nil); status != http.StatusForbidden {
		t.Fatalf("stranger get = %d, want 403", status)
	}
}

func TestInvalidStateMapsToConflict(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking()

	status, env := f.do(http.MethodPost, "/api/bookings/"+id+"/delivered", f.token(f.carrierID, utils.RoleUser), nil)
	if status != http.StatusConflict || env.Code != "INVALID_STATE" {
		t.Fatalf("deliver pending = %d %s, want 409 INVALID_STATE", status, env.Code)
	}

	status, env = f.do(http.MethodGet, "/api/bookings/999999", f.token(f.senderID, utils.RoleUser), nil)
	if status != http.StatusNotFound || env.Code != "NOT_FOUND" {
		t.Fatalf("unknown booking = %d %s, want 404 NOT_FOUND", status, env.Code)
	}
}

func TestFeePreview(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(http.MethodGet, "/api/fees/preview?amount=600", "", nil)
	if status != http.StatusOK {
		t.Fatalf("preview = %d %s %s", status, env.Code, env.Message)
	}
	var quote struct {
		Rate             string `json:"rate"`
		CommissionAmount string `json:"commission_amount"`
	}
	if err := json.Unmarshal(env.Data, &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if !decimal.RequireFromString(quote.Rate).Equal(decimal.NewFromInt(10)) {
		t.Fatalf("rate = %s, want 10", quote.Rate)
	}
	if !decimal.RequireFromString(quote.CommissionAmount).Equal(decimal.NewFromInt(60)) {
		t.Fatalf("commission = %s, want 60", quote.CommissionAmount)
	}

	if status, env := f.do(http.MethodGet, "/api/fees/preview?amount=abc", "", nil); status != http.StatusBadRequest {
		t.Fatalf("bad amount = %d %s", status, env.Code)
	}
}

func TestWebhookSignature(t *testing.T) {
	f := newAPIFixture(t)

	post := func(header, signature string, payload []byte) int {
		req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/api/webhooks/payments", bytes.NewReader(payload))
		if header != "" {
			req.Header.Set(header, signature)
		}
		resp, err := f.server.Client().Do(req)
		if err != nil {
			t.Fatalf("post webhook: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	payload, signature, err := f.gateway.BuildWebhook(payment.WebhookEvent{
		ID:        "evt_unknown_account",
		Type:      payment.EventAccountUpdated,
		AccountID: "acct_nobody",
	})
	if err != nil {
		t.Fatalf("build webhook: %v", err)
	}

	if status := post("", "", payload); status != http.StatusBadRequest {
		t.Fatalf("unsigned = %d, want 400", status)
	}
	if status := post("Payment-Signature", "t=1,v1=deadbeef", payload); status != http.StatusUnauthorized {
		t.Fatalf("bad signature = %d, want 401", status)
	}
	if status := post("Payment-Signature", signature, payload); status != http.StatusOK {
		t.Fatalf("signed = %d, want 200", status)
	}
}
