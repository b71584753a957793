package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// PaddleConfig enables Paddle as an alternate provider when APIKey is set.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	PriceMonthly  string `env:"PADDLE_PRICE_ID_MONTHLY"`
	PriceYearly   string `env:"PADDLE_PRICE_ID_YEARLY"`
	CheckoutURL   string `env:"PADDLE_CHECKOUT_URL"`
}

func (c PaddleConfig) Enabled() bool { return c.APIKey != "" }

// CheckoutRequest describes a hosted checkout for the Pro plan.
type CheckoutRequest struct {
	UserID uuid.UUID
	Email  string
	Cycle  BillingCycle
}

// CheckoutLink is a hosted checkout session.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// PaddleGateway creates Paddle checkouts and verifies Paddle webhooks.
type PaddleGateway struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

func NewPaddleGateway(config PaddleConfig) (*PaddleGateway, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}

	return &PaddleGateway{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
		config:   config,
	}, nil
}

func (p *PaddleGateway) priceID(cycle BillingCycle) string {
	if cycle == CycleYearly {
		return p.config.PriceYearly
	}
	return p.config.PriceMonthly
}

// CreateCheckout opens a transaction for the Pro price. The local user id is
// stored in custom_data so subscription webhooks can be attributed.
func (p *PaddleGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	priceID := p.priceID(req.Cycle)
	if priceID == "" {
		return nil, &PlanConfigError{Cycle: req.Cycle}
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})
	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id": req.UserID.String(),
		},
	}
	if req.Email != "" {
		txReq.CustomData["email"] = req.Email
	}
	if p.config.CheckoutURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(p.config.CheckoutURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *tx.Checkout.URL,
		SessionID: tx.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

type paddleWebhook struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID                   string         `json:"id"`
		Status               string         `json:"status"`
		CustomData           map[string]any `json:"custom_data"`
		CurrentBillingPeriod *struct {
			EndsAt time.Time `json:"ends_at"`
		} `json:"current_billing_period"`
	} `json:"data"`
}

// ParseWebhook verifies the Paddle-Signature header against payload and
// normalises subscription events.
func (p *PaddleGateway) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerification, err)
	}
	if !valid {
		return nil, ErrWebhookVerification
	}

	var ev paddleWebhook
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	out := &WebhookEvent{
		ID:         ev.EventID,
		Provider:   ProviderPaddle,
		Type:       mapPaddleEvent(ev.EventType, ev.Data.Status),
		ExternalID: ev.Data.ID,
		Status:     ev.Data.Status,
	}
	if userID, ok := ev.Data.CustomData["user_id"].(string); ok {
		out.UserRef = userID
	}
	if period := ev.Data.CurrentBillingPeriod; period != nil && !period.EndsAt.IsZero() {
		end := period.EndsAt.UTC()
		out.CurrentPeriodEnd = &end
	}
	return out, nil
}

func mapPaddleEvent(eventType, status string) EventType {
	switch eventType {
	case "subscription.activated":
		return EventActivated
	case "subscription.created":
		if status == "active" {
			return EventActivated
		}
	case "subscription.canceled":
		return EventCancelled
	case "subscription.paused", "subscription.past_due":
		return EventPaused
	case "subscription.resumed":
		return EventResumed
	}
	return EventType(eventType)
}
