// Package gemini turns free-text invoice requests into structured drafts using
// the Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/invoicer/pkg/logger"
)

var (
	ErrMissingAPIKey  = errors.New("gemini API key is not configured")
	ErrQuotaExhausted = errors.New("gemini daily quota exhausted")
	ErrRateLimited    = errors.New("gemini is rate limiting requests")
	ErrEmptyPrompt    = errors.New("prompt is required")
	ErrBadResponse    = errors.New("gemini returned an unusable response")
)

type Config struct {
	APIKey     string        `env:"GEMINI_API_KEY"`
	Model      string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	BaseURL    string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	MaxRetries int           `env:"GEMINI_MAX_RETRIES" envDefault:"3"`
	RetryDelay time.Duration `env:"GEMINI_RETRY_DELAY" envDefault:"5s"`
	Timeout    time.Duration `env:"GEMINI_TIMEOUT" envDefault:"30s"`
}

// ParsedCustomer leaves fields the prompt did not mention as nil.
type ParsedCustomer struct {
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type ParsedItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// ParsedInvoice is a draft for the invoice form, not a stored invoice.
type ParsedInvoice struct {
	Customer ParsedCustomer `json:"customer"`
	Items    []ParsedItem   `json:"items"`
	DueDate  *string        `json:"due_date,omitempty"`
	Notes    *string        `json:"notes,omitempty"`
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(cl *Client) {
		if log != nil {
			cl.log = log
		}
	}
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.cfg.APIKey != "" }

// ParseInvoice extracts customer, items, due date and notes from prompt.
// Relative due dates are resolved against today.
func (c *Client) ParseInvoice(ctx context.Context, prompt string, today time.Time) (*ParsedInvoice, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	text, err := c.generateWithRetry(ctx, buildPrompt(prompt, today))
	if err != nil {
		return nil, err
	}

	var out ParsedInvoice
	if err := json.Unmarshal([]byte(stripFences(text)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	normalize(&out)
	return &out, nil
}

func (c *Client) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	for attempt := 0; ; attempt++ {
		text, err := c.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		var apiErr *apiError
		if !errors.As(err, &apiErr) || !apiErr.rateLimited() {
			return "", err
		}
		if attempt >= c.cfg.MaxRetries {
			if apiErr.quotaExhausted() {
				return "", errors.Join(ErrQuotaExhausted, err)
			}
			return "", errors.Join(ErrRateLimited, err)
		}

		c.log.WarnContext(ctx, "gemini rate limited, retrying",
			logger.Component("gemini"),
			logger.RetryCount(attempt+1),
			logger.Duration(c.cfg.RetryDelay),
		)
		t := time.NewTimer(c.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gemini API error (status %d %s): %s", e.StatusCode, e.Status, e.Message)
}

func (e *apiError) rateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || strings.Contains(strings.ToLower(e.Message), "quota")
}

func (e *apiError) quotaExhausted() bool {
	return strings.Contains(e.Message, "limit: 0") || strings.Contains(strings.ToLower(e.Message), "quota")
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var env struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		apiErr := &apiError{StatusCode: resp.StatusCode, Message: string(raw)}
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			apiErr.Message = env.Error.Message
			apiErr.Status = env.Error.Status
		}
		return "", apiErr
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	var sb strings.Builder
	if len(gr.Candidates) > 0 {
		for _, p := range gr.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrBadResponse)
	}
	return sb.String(), nil
}
