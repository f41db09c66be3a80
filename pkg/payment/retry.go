package payment

import (
	"context"
	"time"

	"courier-booking/pkg/apperror"

	"go.uber.org/zap"
)

type retryGateway struct {
	next       Gateway
	maxRetries int
	baseDelay  time.Duration
	log        *zap.Logger
}

// WithRetry retries calls that failed with ProcessorUnavailable, doubling the
// delay each attempt. Rejections are returned immediately. Webhook
// verification is local and never retried.
func WithRetry(next Gateway, maxRetries int, baseDelay time.Duration, log *zap.Logger) Gateway {
	if maxRetries <= 0 {
		return next
	}
	return &retryGateway{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		log:        log.With(zap.String("gateway", "retry")),
	}
}

func retry[T any](ctx context.Context, g *retryGateway, op string, call func() (T, error)) (T, error) {
	delay := g.baseDelay
	for attempt := 0; ; attempt++ {
		out, err := call()
		if err == nil || !apperror.Retryable(err) || attempt >= g.maxRetries {
			return out, err
		}

		g.log.Warn("Processor unavailable, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			var zero T
			return zero, apperror.Wrap(apperror.CodeProcessorUnavailable, ctx.Err(), "%s interrupted", op)
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (g *retryGateway) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*PaymentIntent, error) {
	return retry(ctx, g, "create payment intent", func() (*PaymentIntent, error) {
		return g.next.CreatePaymentIntent(ctx, req)
	})
}

func (g *retryGateway) ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethod string) (*PaymentIntent, error) {
	return retry(ctx, g, "confirm payment intent", func() (*PaymentIntent, error) {
		return g.next.ConfirmPaymentIntent(ctx, intentID, paymentMethod)
	})
}

func (g *retryGateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	return retry(ctx, g, "retrieve payment intent", func() (*PaymentIntent, error) {
		return g.next.RetrievePaymentIntent(ctx, intentID)
	})
}

func (g *retryGateway) CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	return retry(ctx, g, "cancel payment intent", func() (*PaymentIntent, error) {
		return g.next.CancelPaymentIntent(ctx, intentID)
	})
}

func (g *retryGateway) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	return retry(ctx, g, "create refund", func() (*Refund, error) {
		return g.next.CreateRefund(ctx, req)
	})
}

func (g *retryGateway) CreateConnectedAccount(ctx context.Context, req AccountRequest) (*AccountStatus, error) {
	return retry(ctx, g, "create connected account", func() (*AccountStatus, error) {
		return g.next.CreateConnectedAccount(ctx, req)
	})
}

func (g *retryGateway) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return retry(ctx, g, "create onboarding link", func() (string, error) {
		return g.next.CreateOnboardingLink(ctx, accountID, refreshURL, returnURL)
	})
}

func (g *retryGateway) GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	return retry(ctx, g, "get account status", func() (*AccountStatus, error) {
		return g.next.GetAccountStatus(ctx, accountID)
	})
}

func (g *retryGateway) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	return retry(ctx, g, "create transfer", func() (*Transfer, error) {
		return g.next.CreateTransfer(ctx, req)
	})
}

func (g *retryGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return g.next.VerifyWebhook(payload, signature)
}
