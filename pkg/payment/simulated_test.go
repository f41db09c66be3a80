package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"courier-booking/pkg/apperror"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestSimulatedGateway_IntentLifecycle(t *testing.T) {
	ctx := context.Background()
	g := NewSimulatedGateway("whsec_test")

	pi, err := g.CreatePaymentIntent(ctx, CreateIntentRequest{
		Amount:         decimal.RequireFromString("92.00"),
		Currency:       "usd",
		IdempotencyKey: "booking-1-attempt-1",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if pi.Status != IntentRequiresPaymentMethod {
		t.Fatalf("expected requires_payment_method, got %s", pi.Status)
	}

	again, err := g.CreatePaymentIntent(ctx, CreateIntentRequest{
		Amount:         decimal.RequireFromString("92.00"),
		Currency:       "usd",
		IdempotencyKey: "booking-1-attempt-1",
	})
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if again.ID != pi.ID {
		t.Fatalf("idempotency key should return the same intent, got %s and %s", pi.ID, again.ID)
	}

	confirmed, err := g.ConfirmPaymentIntent(ctx, pi.ID, "pm_card_visa")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != IntentSucceeded {
		t.Fatalf("expected succeeded, got %s", confirmed.Status)
	}

	refund, err := g.CreateRefund(ctx, RefundRequest{PaymentIntentID: pi.ID, Amount: decimal.RequireFromString("50")})
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if !refund.Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected refund of 50, got %s", refund.Amount)
	}

	_, err = g.CreateRefund(ctx, RefundRequest{PaymentIntentID: pi.ID, Amount: decimal.RequireFromString("50")})
	if !errors.Is(err, apperror.ErrProcessorRejected) {
		t.Fatalf("expected over-refund rejection, got %v", err)
	}
}

func TestSimulatedGateway_MagicCards(t *testing.T) {
	ctx := context.Background()
	g := NewSimulatedGateway("whsec_test")

	tests := []struct {
		name    string
		method  string
		wantErr error
	}{
		{"declined", TestCardDeclined, apperror.ErrProcessorRejected},
		{"unavailable", TestCardUnavailable, apperror.ErrProcessorUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pi, err := g.CreatePaymentIntent(ctx, CreateIntentRequest{Amount: decimal.NewFromInt(10), Currency: "usd"})
			if err != nil {
				t.Fatalf("create intent: %v", err)
			}
			_, err = g.ConfirmPaymentIntent(ctx, pi.ID, tt.method)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			got, _ := g.RetrievePaymentIntent(ctx, pi.ID)
			if got.Status == IntentSucceeded {
				t.Fatal("intent must not succeed")
			}
		})
	}
}

func TestSimulatedGateway_TransferRequiresEnabledAccount(t *testing.T) {
	ctx := context.Background()
	g := NewSimulatedGateway("whsec_test")

	acct, err := g.CreateConnectedAccount(ctx, AccountRequest{UserID: "u1", Email: "carrier@example.com"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	req := TransferRequest{Amount: decimal.NewFromInt(80), Currency: "usd", DestinationID: acct.AccountID}
	if _, err := g.CreateTransfer(ctx, req); !errors.Is(err, apperror.ErrProcessorRejected) {
		t.Fatalf("expected rejection before onboarding, got %v", err)
	}

	g.CompleteOnboarding(acct.AccountID)
	status, _ := g.GetAccountStatus(ctx, acct.AccountID)
	if !status.PayoutsEnabled || !status.ChargesEnabled {
		t.Fatalf("expected enabled account, got %+v", status)
	}
	if _, err := g.CreateTransfer(ctx, req); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if g.TransferCount() != 1 {
		t.Fatalf("expected 1 transfer, got %d", g.TransferCount())
	}
}

func TestWebhookSignature(t *testing.T) {
	g := NewSimulatedGateway("whsec_test")
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }

	payload, sig, err := g.BuildWebhook(WebhookEvent{
		ID:              "evt_1",
		Type:            EventPaymentSucceeded,
		Created:         now,
		PaymentIntentID: "pi_sim_000001",
		Amount:          decimal.RequireFromString("92.00"),
	})
	if err != nil {
		t.Fatalf("build webhook: %v", err)
	}

	ev, err := g.VerifyWebhook(payload, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.PaymentIntentID != "pi_sim_000001" || !ev.Amount.Equal(decimal.RequireFromString("92")) {
		t.Fatalf("unexpected event %+v", ev)
	}

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '
	if _, err := g.VerifyWebhook(tampered, sig); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for tampered payload, got %v", err)
	}

	g.now = func() time.Time { return now.Add(time.Hour) }
	if _, err := g.VerifyWebhook(payload, sig); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for stale signature, got %v", err)
	}

	if _, err := g.VerifyWebhook(payload, "garbage"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for malformed header, got %v", err)
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers from transient failures", func(t *testing.T) {
		sim := NewSimulatedGateway("whsec_test")
		g := WithRetry(sim, 3, time.Millisecond, zap.NewNop())

		sim.FailNext(2)
		pi, err := g.CreatePaymentIntent(ctx, CreateIntentRequest{Amount: decimal.NewFromInt(10), Currency: "usd"})
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if pi.ID == "" {
			t.Fatal("expected intent id")
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		sim := NewSimulatedGateway("whsec_test")
		g := WithRetry(sim, 2, time.Millisecond, zap.NewNop())

		sim.FailNext(5)
		_, err := g.CreatePaymentIntent(ctx, CreateIntentRequest{Amount: decimal.NewFromInt(10), Currency: "usd"})
		if !errors.Is(err, apperror.ErrProcessorUnavailable) {
			t.Fatalf("expected unavailable, got %v", err)
		}
	})

	t.Run("does not retry rejections", func(t *testing.T) {
		sim := NewSimulatedGateway("whsec_test")
		g := WithRetry(sim, 3, time.Millisecond, zap.NewNop())

		_, err := g.CreatePaymentIntent(ctx, CreateIntentRequest{Amount: decimal.Zero, Currency: "usd"})
		if !errors.Is(err, apperror.ErrProcessorRejected) {
			t.Fatalf("expected rejection, got %v", err)
		}
	})
}
