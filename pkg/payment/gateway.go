// Package payment abstracts the card processor: payment intents, refunds,
// connected payout accounts, transfers and webhook verification.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

// Webhook event types the settlement flow reacts to.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
	EventChargeRefunded   = "charge.refunded"
	EventAccountUpdated   = "account.updated"
)

type PaymentIntent struct {
	ID             string
	ClientSecret   string
	Amount         decimal.Decimal
	Currency       string
	Status         IntentStatus
	PaymentMethod  string
	FailureMessage string
}

type CreateIntentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type RefundRequest struct {
	PaymentIntentID string
	// Amount zero refunds whatever is left on the intent.
	Amount         decimal.Decimal
	Reason         string
	IdempotencyKey string
}

type Refund struct {
	ID              string
	PaymentIntentID string
	Amount          decimal.Decimal
	Status          string
}

type AccountRequest struct {
	UserID  string
	Email   string
	Country string
}

// AccountStatus is the processor's view of a connected account.
type AccountStatus struct {
	AccountID        string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DisabledReason   string
}

type TransferRequest struct {
	Amount         decimal.Decimal
	Currency       string
	DestinationID  string
	TransferGroup  string
	IdempotencyKey string
}

type Transfer struct {
	ID            string
	Amount        decimal.Decimal
	DestinationID string
}

// WebhookEvent is a verified processor notification reduced to the fields
// the settlement flow needs.
type WebhookEvent struct {
	ID              string
	Type            string
	Created         time.Time
	PaymentIntentID string
	AccountID       string
	Amount          decimal.Decimal
	FailureMessage  string
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethod string) (*PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	CreateConnectedAccount(ctx context.Context, req AccountRequest) (*AccountStatus, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
