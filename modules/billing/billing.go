// Package billing serves the Pro subscription checkout, payment
// confirmation, provider webhooks and the entitlement status endpoint.
package billing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/handler"
	"github.com/dmitrymomot/invoicer/pkg/subscription"
	"github.com/dmitrymomot/invoicer/svc/entitlement"
)

// MaxWebhookBody caps provider webhook payloads.
const MaxWebhookBody = 1 << 20

// Razorpay is the subset of *subscription.RazorpayGateway the handlers use.
type Razorpay interface {
	KeyID() string
	PlanID(cycle subscription.BillingCycle) (string, error)
	CreateSubscription(ctx context.Context, p subscription.CreateSubscriptionParams) (*subscription.ProviderSubscription, error)
	CancelSubscription(ctx context.Context, id string, atCycleEnd bool) (*subscription.ProviderSubscription, error)
	VerifyPaymentSignature(paymentID, subscriptionID, signature string) bool
	VerifyWebhookSignature(rawBody []byte, signature string) bool
	ParseWebhook(rawBody []byte) (*subscription.WebhookEvent, error)
}

// Paddle is the subset of *subscription.PaddleGateway the handlers use.
type Paddle interface {
	CreateCheckout(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error)
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error)
}

// Subscriptions is implemented by *subscription.Service.
type Subscriptions interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
	ConfirmPayment(ctx context.Context, userID uuid.UUID, externalID string) error
	HandleWebhook(ctx context.Context, ev *subscription.WebhookEvent) error
}

// Entitlements is implemented by *entitlement.Service.
type Entitlements interface {
	CheckInvoiceLimit(ctx context.Context, userID uuid.UUID) (entitlement.Result, error)
}

type Option func(*Service)

// WithPaddle enables the Paddle checkout and webhook routes.
func WithPaddle(p Paddle) Option {
	return func(s *Service) {
		s.paddle = p
	}
}

// WithDeduper skips webhook deliveries whose event id was already processed.
func WithDeduper(d subscription.Deduper) Option {
	return func(s *Service) {
		s.deduper = d
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

type Service struct {
	subs         Subscriptions
	entitlements Entitlements
	razorpay     Razorpay
	paddle       Paddle
	deduper      subscription.Deduper
	log          *slog.Logger
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewService(
	subs Subscriptions,
	entitlements Entitlements,
	razorpay Razorpay,
	errorHandler handler.ErrorHandler[handler.Context],
	opts ...Option,
) *Service {
	if subs == nil || entitlements == nil || razorpay == nil {
		panic("billing: subscriptions, entitlements and razorpay are required")
	}
	s := &Service{
		subs:         subs,
		entitlements: entitlements,
		razorpay:     razorpay,
		log:          slog.Default(),
		errorHandler: errorHandler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
