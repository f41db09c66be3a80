package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"courier-booking/pkg/apperror"
	"courier-booking/pkg/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// StripeGateway talks to Stripe with Connect express accounts for carriers.
type StripeGateway struct {
	sc            *client.API
	webhookSecret string
	log           *zap.Logger
}

func NewStripeGateway(secretKey, webhookSecret string, log *zap.Logger) *StripeGateway {
	return &StripeGateway{
		sc:            client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		log:           log.With(zap.String("gateway", "stripe")),
	}
}

// mapStripeError sorts processor failures into retryable and final ones.
func mapStripeError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		// transport level failure, the request may not have reached stripe
		return apperror.Wrap(apperror.CodeProcessorUnavailable, err, "%s failed", op)
	}

	switch {
	case se.HTTPStatusCode == http.StatusTooManyRequests,
		se.HTTPStatusCode >= http.StatusInternalServerError,
		se.Type == stripe.ErrorTypeAPI:
		return apperror.Wrap(apperror.CodeProcessorUnavailable, err, "%s failed", op)
	default:
		msg := se.Msg
		if msg == "" {
			msg = op + " rejected"
		}
		return apperror.Wrap(apperror.CodeProcessorRejected, err, "%s", msg)
	}
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       utils.FromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
		Status:       IntentStatus(pi.Status),
	}
	if pi.PaymentMethod != nil {
		out.PaymentMethod = pi.PaymentMethod.ID
	}
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(utils.ToMinorUnits(req.Amount)),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		g.log.Warn("Create payment intent failed", zap.Error(err), zap.String("idempotency_key", req.IdempotencyKey))
		return nil, mapStripeError("create payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethod string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethod),
	}
	params.Context = ctx

	pi, err := g.sc.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		g.log.Warn("Confirm payment intent failed", zap.Error(err), zap.String("payment_intent_id", intentID))
		return nil, mapStripeError("confirm payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.sc.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, mapStripeError("retrieve payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	pi, err := g.sc.PaymentIntents.Cancel(intentID, params)
	if err != nil {
		g.log.Warn("Cancel payment intent failed", zap.Error(err), zap.String("payment_intent_id", intentID))
		return nil, mapStripeError("cancel payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
	}
	params.Context = ctx
	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(utils.ToMinorUnits(req.Amount))
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := g.sc.Refunds.New(params)
	if err != nil {
		g.log.Warn("Create refund failed", zap.Error(err), zap.String("payment_intent_id", req.PaymentIntentID))
		return nil, mapStripeError("create refund", err)
	}
	return &Refund{
		ID:              r.ID,
		PaymentIntentID: req.PaymentIntentID,
		Amount:          utils.FromMinorUnits(r.Amount),
		Status:          string(r.Status),
	}, nil
}

func toAccountStatus(a *stripe.Account) *AccountStatus {
	out := &AccountStatus{
		AccountID:        a.ID,
		DetailsSubmitted: a.DetailsSubmitted,
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
	}
	if a.Requirements != nil {
		out.DisabledReason = string(a.Requirements.DisabledReason)
	}
	return out
}

func (g *StripeGateway) CreateConnectedAccount(ctx context.Context, req AccountRequest) (*AccountStatus, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(req.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	params.Context = ctx
	if req.Country != "" {
		params.Country = stripe.String(req.Country)
	}
	params.AddMetadata("user_id", req.UserID)
	params.SetIdempotencyKey("acct-" + req.UserID)

	a, err := g.sc.Accounts.New(params)
	if err != nil {
		g.log.Warn("Create connected account failed", zap.Error(err), zap.String("user_id", req.UserID))
		return nil, mapStripeError("create connected account", err)
	}
	return toAccountStatus(a), nil
}

func (g *StripeGateway) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := g.sc.AccountLinks.New(params)
	if err != nil {
		return "", mapStripeError("create onboarding link", err)
	}
	return link.URL, nil
}

func (g *StripeGateway) GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	a, err := g.sc.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, mapStripeError("get account status", err)
	}
	return toAccountStatus(a), nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(utils.ToMinorUnits(req.Amount)),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.DestinationID),
	}
	params.Context = ctx
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	t, err := g.sc.Transfers.New(params)
	if err != nil {
		g.log.Warn("Create transfer failed", zap.Error(err), zap.String("destination", req.DestinationID))
		return nil, mapStripeError("create transfer", err)
	}
	return &Transfer{
		ID:            t.ID,
		Amount:        utils.FromMinorUnits(t.Amount),
		DestinationID: req.DestinationID,
	}, nil
}

func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeUnauthorized, err, "invalid webhook signature")
	}

	out := &WebhookEvent{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventPaymentSucceeded, EventPaymentFailed, EventPaymentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, apperror.InvalidInput("malformed payment intent in webhook")
		}
		out.PaymentIntentID = pi.ID
		out.Amount = utils.FromMinorUnits(pi.Amount)
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Msg
		}
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, apperror.InvalidInput("malformed charge in webhook")
		}
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.Amount = utils.FromMinorUnits(ch.AmountRefunded)
	case EventAccountUpdated:
		var a stripe.Account
		if err := json.Unmarshal(ev.Data.Raw, &a); err != nil {
			return nil, apperror.InvalidInput("malformed account in webhook")
		}
		out.AccountID = a.ID
	}
	return out, nil
}
