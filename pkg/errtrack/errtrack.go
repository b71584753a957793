// Package errtrack reports server errors and panics to Sentry.
//
// A tracker without a DSN is a no-op, so callers never need to branch on
// whether error tracking is configured.
package errtrack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/dmitrymomot/invoicer/pkg/jwt"
	"github.com/dmitrymomot/invoicer/pkg/requestid"
)

var ErrInitFailed = errors.New("errtrack: sentry initialization failed")

type Config struct {
	DSN              string  `env:"SENTRY_DSN"`
	Environment      string  `env:"SENTRY_ENVIRONMENT" envDefault:"development"`
	Release          string  `env:"SENTRY_RELEASE"`
	SampleRate       float64 `env:"SENTRY_SAMPLE_RATE" envDefault:"1.0"`
	AttachStacktrace bool    `env:"SENTRY_ATTACH_STACKTRACE" envDefault:"true"`
}

type Option func(*sentry.ClientOptions)

// WithBeforeSend installs a hook run on every event before it is sent.
// Returning nil drops the event.
func WithBeforeSend(fn func(*sentry.Event, *sentry.EventHint) *sentry.Event) Option {
	return func(o *sentry.ClientOptions) {
		o.BeforeSend = fn
	}
}

type Tracker struct {
	hub *sentry.Hub
}

// New builds a tracker. An empty DSN yields a disabled tracker.
func New(cfg Config, opts ...Option) (*Tracker, error) {
	if cfg.DSN == "" {
		return &Tracker{}, nil
	}

	co := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: cfg.AttachStacktrace,
	}
	for _, opt := range opts {
		opt(&co)
	}

	client, err := sentry.NewClient(co)
	if err != nil {
		return nil, errors.Join(ErrInitFailed, err)
	}
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Enabled reports whether events are sent anywhere.
func (t *Tracker) Enabled() bool { return t != nil && t.hub != nil }

// Report captures err with request and user tags taken from ctx.
// Its signature matches handler.Reporter.
func (t *Tracker) Report(ctx context.Context, err error) {
	if !t.Enabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = t.hub
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if id := requestid.FromContext(ctx); id != "" {
			scope.SetTag("request_id", id)
		}
		if uid, ok := jwt.UserID(ctx); ok {
			scope.SetUser(sentry.User{ID: uid.String()})
		}
		scope.SetExtra("error_type", fmt.Sprintf("%T", err))
		hub.CaptureException(err)
	})
}

// Middleware attaches a per-request hub and reports panics before
// re-raising them for the outer recoverer.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	if !t.Enabled() {
		return next
	}
	recoverer := sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := sentry.SetHubOnContext(r.Context(), t.hub.Clone())
		recoverer.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Flush waits up to timeout for buffered events to be delivered.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if !t.Enabled() {
		return true
	}
	return t.hub.Flush(timeout)
}
