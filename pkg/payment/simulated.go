package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"courier-booking/pkg/apperror"
	"courier-booking/pkg/utils"

	"github.com/shopspring/decimal"
)

// Magic payment methods understood by the simulated processor.
const (
	TestCardDeclined    = "pm_card_declined"
	TestCardUnavailable = "pm_card_unavailable"
)

type simIntent struct {
	PaymentIntent
	refunded decimal.Decimal
}

// SimulatedGateway is a deterministic in-process processor used for local
// runs and tests. Webhooks it accepts are signed with SignPayload.
type SimulatedGateway struct {
	mu            sync.Mutex
	secret        string
	now           func() time.Time
	seq           int
	intents       map[string]*simIntent
	idempotency   map[string]string
	accounts      map[string]*AccountStatus
	transfers     map[string]*Transfer
	failuresLeft  int
	transferCount int
}

func NewSimulatedGateway(webhookSecret string) *SimulatedGateway {
	return &SimulatedGateway{
		secret:      webhookSecret,
		now:         time.Now,
		intents:     make(map[string]*simIntent),
		idempotency: make(map[string]string),
		accounts:    make(map[string]*AccountStatus),
		transfers:   make(map[string]*Transfer),
	}
}

// FailNext makes the next n calls fail with ProcessorUnavailable.
func (g *SimulatedGateway) FailNext(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failuresLeft = n
}

// CompleteOnboarding flips a connected account to fully enabled.
func (g *SimulatedGateway) CompleteOnboarding(accountID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.accounts[accountID]; ok {
		a.DetailsSubmitted = true
		a.ChargesEnabled = true
		a.PayoutsEnabled = true
		a.DisabledReason = ""
	}
}

// RejectAccount disables a connected account with the given reason.
func (g *SimulatedGateway) RejectAccount(accountID, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.accounts[accountID]; ok {
		a.ChargesEnabled = false
		a.PayoutsEnabled = false
		a.DisabledReason = reason
	}
}

// TransferCount reports how many transfers were made.
func (g *SimulatedGateway) TransferCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transferCount
}

func (g *SimulatedGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_sim_%06d", prefix, g.seq)
}

// injected must be called with mu held.
func (g *SimulatedGateway) injected(op string) error {
	if g.failuresLeft > 0 {
		g.failuresLeft--
		return apperror.New(apperror.CodeProcessorUnavailable, "processor unavailable during %s", op)
	}
	return nil
}

func (g *SimulatedGateway) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("create payment intent"); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.New(apperror.CodeProcessorRejected, "amount must be positive")
	}
	if req.IdempotencyKey != "" {
		if id, ok := g.idempotency[req.IdempotencyKey]; ok {
			pi := g.intents[id].PaymentIntent
			return &pi, nil
		}
	}

	id := g.nextID("pi")
	intent := &simIntent{
		PaymentIntent: PaymentIntent{
			ID:           id,
			ClientSecret: id + "_secret",
			Amount:       utils.RoundMoney(req.Amount),
			Currency:     req.Currency,
			Status:       IntentRequiresPaymentMethod,
		},
		refunded: decimal.Zero,
	}
	g.intents[id] = intent
	if req.IdempotencyKey != "" {
		g.idempotency[req.IdempotencyKey] = id
	}

	pi := intent.PaymentIntent
	return &pi, nil
}

func (g *SimulatedGateway) ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethod string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("confirm payment intent"); err != nil {
		return nil, err
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, apperror.New(apperror.CodeProcessorRejected, "no such payment intent %s", intentID)
	}

	switch intent.Status {
	case IntentSucceeded:
		pi := intent.PaymentIntent
		return &pi, nil
	case IntentCanceled:
		return nil, apperror.New(apperror.CodeProcessorRejected, "payment intent %s was canceled", intentID)
	}

	switch paymentMethod {
	case TestCardUnavailable:
		return nil, apperror.New(apperror.CodeProcessorUnavailable, "card network unavailable")
	case TestCardDeclined:
		intent.Status = IntentRequiresPaymentMethod
		intent.FailureMessage = "Your card was declined."
		return nil, apperror.New(apperror.CodeProcessorRejected, "card declined")
	}

	intent.PaymentMethod = paymentMethod
	intent.FailureMessage = ""
	intent.Status = IntentSucceeded
	pi := intent.PaymentIntent
	return &pi, nil
}

func (g *SimulatedGateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("retrieve payment intent"); err != nil {
		return nil, err
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, apperror.New(apperror.CodeProcessorRejected, "no such payment intent %s", intentID)
	}
	pi := intent.PaymentIntent
	return &pi, nil
}

func (g *SimulatedGateway) CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("cancel payment intent"); err != nil {
		return nil, err
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, apperror.New(apperror.CodeProcessorRejected, "no such payment intent %s", intentID)
	}
	if intent.Status == IntentSucceeded {
		return nil, apperror.New(apperror.CodeProcessorRejected, "payment intent %s already succeeded", intentID)
	}
	intent.Status = IntentCanceled
	pi := intent.PaymentIntent
	return &pi, nil
}

func (g *SimulatedGateway) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("create refund"); err != nil {
		return nil, err
	}
	intent, ok := g.intents[req.PaymentIntentID]
	if !ok {
		return nil, apperror.New(apperror.CodeProcessorRejected, "no such payment intent %s", req.PaymentIntentID)
	}
	if intent.Status != IntentSucceeded {
		return nil, apperror.New(apperror.CodeProcessorRejected, "payment intent %s has no captured charge", req.PaymentIntentID)
	}

	refundable := intent.Amount.Sub(intent.refunded)
	amount := req.Amount
	if amount.IsZero() {
		amount = refundable
	}
	if !amount.IsPositive() || amount.GreaterThan(refundable) {
		return nil, apperror.New(apperror.CodeProcessorRejected, "refund of %s exceeds refundable %s", amount, refundable)
	}
	intent.refunded = intent.refunded.Add(amount)

	return &Refund{
		ID:              g.nextID("re"),
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Status:          "succeeded",
	}, nil
}

func (g *SimulatedGateway) CreateConnectedAccount(ctx context.Context, req AccountRequest) (*AccountStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("create connected account"); err != nil {
		return nil, err
	}
	account := &AccountStatus{AccountID: g.nextID("acct")}
	g.accounts[account.AccountID] = account
	status := *account
	return &status, nil
}

func (g *SimulatedGateway) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("create onboarding link"); err != nil {
		return "", err
	}
	if _, ok := g.accounts[accountID]; !ok {
		return "", apperror.New(apperror.CodeProcessorRejected, "no such account %s", accountID)
	}
	return fmt.Sprintf("https://connect.simulated.local/setup/%s?return_url=%s", accountID, returnURL), nil
}

func (g *SimulatedGateway) GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("get account status"); err != nil {
		return nil, err
	}
	account, ok := g.accounts[accountID]
	if !ok {
		return nil, apperror.New(apperror.CodeProcessorRejected, "no such account %s", accountID)
	}
	status := *account
	return &status, nil
}

func (g *SimulatedGateway) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injected("create transfer"); err != nil {
		return nil, err
	}
	account, ok := g.accounts[req.DestinationID]
	if !ok {
		return nil, apperror.New(apperror.CodeProcessorRejected, "no such account %s", req.DestinationID)
	}
	if !account.PayoutsEnabled {
		return nil, apperror.New(apperror.CodeProcessorRejected, "account %s cannot receive transfers", req.DestinationID)
	}
	if req.IdempotencyKey != "" {
		if t, ok := g.transfers[req.IdempotencyKey]; ok {
			transfer := *t
			return &transfer, nil
		}
	}

	transfer := &Transfer{
		ID:            g.nextID("tr"),
		Amount:        req.Amount,
		DestinationID: req.DestinationID,
	}
	if req.IdempotencyKey != "" {
		g.transfers[req.IdempotencyKey] = transfer
	}
	g.transferCount++

	out := *transfer
	return &out, nil
}

// simEvent is the JSON shape of simulated webhooks, a subset of the
// processor's event envelope.
type simEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object simObject `json:"object"`
	} `json:"data"`
}

type simObject struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount,omitempty"`
	PaymentIntent  string `json:"payment_intent,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}

// BuildWebhook renders and signs a simulated webhook for event. The object id
// is the payment intent for payment events and the account for account events.
func (g *SimulatedGateway) BuildWebhook(event WebhookEvent) (payload []byte, signature string, err error) {
	var ev simEvent
	ev.ID = event.ID
	ev.Type = event.Type
	ev.Created = event.Created.Unix()
	ev.Data.Object = simObject{
		Amount:         utils.ToMinorUnits(event.Amount),
		FailureMessage: event.FailureMessage,
	}
	switch event.Type {
	case EventAccountUpdated:
		ev.Data.Object.ID = event.AccountID
	case EventChargeRefunded:
		ev.Data.Object.ID = "ch_" + event.PaymentIntentID
		ev.Data.Object.PaymentIntent = event.PaymentIntentID
	default:
		ev.Data.Object.ID = event.PaymentIntentID
	}

	payload, err = json.Marshal(ev)
	if err != nil {
		return nil, "", fmt.Errorf("marshal webhook: %w", err)
	}
	return payload, SignPayload(payload, g.secret, g.now()), nil
}

func (g *SimulatedGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if err := VerifySignature(payload, signature, g.secret, g.now(), DefaultWebhookTolerance); err != nil {
		return nil, err
	}

	var ev simEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, apperror.InvalidInput("malformed webhook payload")
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, apperror.InvalidInput("webhook event id and type are required")
	}

	out := &WebhookEvent{
		ID:             ev.ID,
		Type:           ev.Type,
		Created:        time.Unix(ev.Created, 0).UTC(),
		Amount:         utils.FromMinorUnits(ev.Data.Object.Amount),
		FailureMessage: ev.Data.Object.FailureMessage,
	}
	switch ev.Type {
	case EventAccountUpdated:
		out.AccountID = ev.Data.Object.ID
	case EventChargeRefunded:
		out.PaymentIntentID = ev.Data.Object.PaymentIntent
	default:
		out.PaymentIntentID = ev.Data.Object.ID
	}
	return out, nil
}
