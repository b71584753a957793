package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/invoicer/pkg/webhook"
)

const razorpayPlanPrefix = "plan_"

// RazorpayConfig holds Razorpay credentials and plan ids.
// RAZORPAY_PLAN_ID is the legacy name of the monthly plan.
type RazorpayConfig struct {
	KeyID         string        `env:"RAZORPAY_KEY_ID"`
	KeySecret     string        `env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `env:"RAZORPAY_WEBHOOK_SECRET"`
	PlanMonthly   string        `env:"RAZORPAY_PLAN_ID_MONTHLY"`
	PlanLegacy    string        `env:"RAZORPAY_PLAN_ID"`
	PlanYearly    string        `env:"RAZORPAY_PLAN_ID_YEARLY"`
	BaseURL       string        `env:"RAZORPAY_API_URL" envDefault:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `env:"RAZORPAY_TIMEOUT" envDefault:"15s"`
	TotalCount    int           `env:"RAZORPAY_TOTAL_COUNT" envDefault:"12"`
}

// BillingCycle selects the provider plan.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// ParseBillingCycle maps anything other than "yearly" to monthly.
func ParseBillingCycle(s string) BillingCycle {
	if strings.EqualFold(strings.TrimSpace(s), string(CycleYearly)) {
		return CycleYearly
	}
	return CycleMonthly
}

// Label is the capitalised cycle name used in user-facing messages.
func (c BillingCycle) Label() string {
	if c == CycleYearly {
		return "Yearly"
	}
	return "Monthly"
}

// CreateSubscriptionParams describes a new recurring subscription.
// Notes travel with every webhook, which is how events find their user.
type CreateSubscriptionParams struct {
	PlanID     string
	TotalCount int
	Notes      map[string]string
}

// ProviderSubscription is the provider's view of a subscription.
type ProviderSubscription struct {
	ID         string
	PlanID     string
	Status     string
	ShortURL   string
	CurrentEnd *time.Time
	Notes      map[string]string
}

// RazorpayOption configures a RazorpayGateway.
type RazorpayOption func(*RazorpayGateway)

func WithHTTPClient(c *http.Client) RazorpayOption {
	return func(g *RazorpayGateway) {
		if c != nil {
			g.http = c
		}
	}
}

// RazorpayGateway talks to the Razorpay subscriptions API and verifies its signatures.
type RazorpayGateway struct {
	cfg  RazorpayConfig
	http *http.Client
}

func NewRazorpayGateway(cfg RazorpayConfig, opts ...RazorpayOption) *RazorpayGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.TotalCount <= 0 {
		cfg.TotalCount = 12
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	g := &RazorpayGateway{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// KeyID is the public key the browser checkout needs.
func (g *RazorpayGateway) KeyID() string { return g.cfg.KeyID }

// PlanID resolves the configured plan for cycle. A missing id or one without
// the plan_ prefix yields a *PlanConfigError.
func (g *RazorpayGateway) PlanID(cycle BillingCycle) (string, error) {
	id := g.cfg.PlanYearly
	if cycle != CycleYearly {
		id = g.cfg.PlanMonthly
		if id == "" {
			id = g.cfg.PlanLegacy
		}
	}
	if !strings.HasPrefix(id, razorpayPlanPrefix) {
		return "", &PlanConfigError{Cycle: cycle, PlanID: id}
	}
	return id, nil
}

// CreateSubscription creates a recurring subscription with customer notification enabled.
func (g *RazorpayGateway) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*ProviderSubscription, error) {
	total := p.TotalCount
	if total <= 0 {
		total = g.cfg.TotalCount
	}
	notes := p.Notes
	if notes == nil {
		notes = map[string]string{}
	}
	body := map[string]any{
		"plan_id":         p.PlanID,
		"customer_notify": 1,
		"total_count":     total,
		"notes":           notes,
	}
	return g.do(ctx, http.MethodPost, "/subscriptions", body)
}

// CancelSubscription cancels now, or at the end of the current cycle.
func (g *RazorpayGateway) CancelSubscription(ctx context.Context, id string, atCycleEnd bool) (*ProviderSubscription, error) {
	flag := 0
	if atCycleEnd {
		flag = 1
	}
	return g.do(ctx, http.MethodPost, "/subscriptions/"+id+"/cancel", map[string]any{"cancel_at_cycle_end": flag})
}

func (g *RazorpayGateway) FetchSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	return g.do(ctx, http.MethodGet, "/subscriptions/"+id, nil)
}

// VerifyPaymentSignature checks the checkout callback signature,
// hex(HMAC-SHA256(key secret, paymentID|subscriptionID)).
func (g *RazorpayGateway) VerifyPaymentSignature(paymentID, subscriptionID, signature string) bool {
	return webhook.Verify(g.cfg.KeySecret, []byte(paymentID+"|"+subscriptionID), signature) == nil
}

// VerifyWebhookSignature checks x-razorpay-signature against the raw body.
// The body must be the exact bytes received; re-encoded JSON will not verify.
func (g *RazorpayGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return webhook.Verify(g.cfg.WebhookSecret, rawBody, signature) == nil
}

type razorpayEntity struct {
	ID         string          `json:"id"`
	PlanID     string          `json:"plan_id"`
	Status     string          `json:"status"`
	ShortURL   string          `json:"short_url"`
	CurrentEnd *int64          `json:"current_end"`
	Notes      json.RawMessage `json:"notes"`
}

func (e razorpayEntity) subscription() *ProviderSubscription {
	return &ProviderSubscription{
		ID:         e.ID,
		PlanID:     e.PlanID,
		Status:     e.Status,
		ShortURL:   e.ShortURL,
		CurrentEnd: unixTime(e.CurrentEnd),
		Notes:      decodeNotes(e.Notes),
	}
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity razorpayEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// ParseWebhook normalises a verified Razorpay webhook body.
// Unknown event names are returned as-is and ignored by Service.
func (g *RazorpayGateway) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var payload razorpayWebhook
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if payload.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrInvalidWebhook)
	}

	sub := payload.Payload.Subscription.Entity.subscription()
	return &WebhookEvent{
		Provider:         ProviderRazorpay,
		Type:             EventType(payload.Event),
		ExternalID:       sub.ID,
		UserRef:          sub.Notes["userId"],
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentEnd,
	}, nil
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *RazorpayGateway) do(ctx context.Context, method, path string, body any) (*ProviderSubscription, error) {
	if g.cfg.KeyID == "" || g.cfg.KeySecret == "" {
		return nil, ErrMissingCredentials
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		perr := &ProviderError{StatusCode: resp.StatusCode}
		var e razorpayError
		if json.Unmarshal(data, &e) == nil {
			perr.Code = e.Error.Code
			perr.Description = e.Error.Description
		}
		return nil, perr
	}

	var entity razorpayEntity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return entity.subscription(), nil
}

// decodeNotes accepts both an object and the empty array Razorpay sends when there are no notes.
func decodeNotes(raw json.RawMessage) map[string]string {
	notes := map[string]string{}
	if len(raw) == 0 {
		return notes
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return notes
	}
	for k, v := range values {
		if s, ok := v.(string); ok {
			notes[k] = s
		}
	}
	return notes
}

func unixTime(ts *int64) *time.Time {
	if ts == nil || *ts <= 0 {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}
