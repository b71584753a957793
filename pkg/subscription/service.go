package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/logger"
	"github.com/dmitrymomot/invoicer/pkg/statemachine"
)

// Outcome describes what reconciliation did with an event.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoop    Outcome = "noop"
	OutcomeDropped Outcome = "dropped"
	OutcomeIgnored Outcome = "ignored"
)

// Observer is notified once per reconciled event, e.g. to count outcomes.
type Observer func(provider string, event EventType, outcome Outcome)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observe = o
		}
	}
}

// Service merges checkout callbacks and webhooks into stored subscriptions.
type Service struct {
	store   Store
	log     *slog.Logger
	now     func() time.Time
	observe Observer
}

// NewService panics when store is nil.
func NewService(store Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	s := &Service{
		store:   store,
		log:     slog.Default(),
		now:     time.Now,
		observe: func(string, EventType, Outcome) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetByUserID returns the stored subscription or ErrSubscriptionNotFound.
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.store.GetByUserID(ctx, userID)
}

// EnsureFree materialises the default free/active row for a new user.
func (s *Service) EnsureFree(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.EnsureFree(ctx, userID); err != nil {
		return fmt.Errorf("ensure free subscription: %w", err)
	}
	return nil
}

// ConfirmPayment activates Pro after the checkout callback signature was verified.
// Repeating it, or racing it with the activation webhook, leaves one pro/active row.
func (s *Service) ConfirmPayment(ctx context.Context, userID uuid.UUID, externalID string) error {
	ev := &WebhookEvent{Provider: ProviderRazorpay, Type: EventPaymentVerified, ExternalID: externalID}
	outcome, err := s.applyToUser(ctx, userID, ev)
	if err != nil {
		return err
	}
	s.observe(ev.Provider, ev.Type, outcome)
	return nil
}

// HandleWebhook applies a verified provider event.
//
// Activation is matched by the user id carried in the event. Cancel, pause
// and resume are matched by the provider subscription id; when no row
// matches, the event is logged and dropped without error so the provider does
// not keep redelivering it. Only store failures are returned.
func (s *Service) HandleWebhook(ctx context.Context, ev *WebhookEvent) error {
	if ev == nil {
		return ErrInvalidWebhook
	}
	log := s.log.With(
		logger.Component("subscription"),
		logger.EventType(string(ev.Type)),
		logger.ExternalSubscriptionID(ev.ExternalID),
		slog.String("provider", ev.Provider),
	)

	var (
		outcome Outcome
		err     error
	)
	switch ev.Type {
	case EventActivated:
		outcome, err = s.activateFromWebhook(ctx, log, ev)
	case EventCancelled, EventExpired, EventPaused, EventResumed:
		outcome, err = s.applyToExternal(ctx, log, ev)
	default:
		log.DebugContext(ctx, "ignoring unhandled billing event")
		outcome = OutcomeIgnored
	}
	if err != nil {
		return err
	}
	s.observe(ev.Provider, ev.Type, outcome)
	return nil
}

func (s *Service) activateFromWebhook(ctx context.Context, log *slog.Logger, ev *WebhookEvent) (Outcome, error) {
	if ev.UserRef == "" {
		log.WarnContext(ctx, "activation event has no user id, dropping")
		return OutcomeDropped, nil
	}
	userID, err := uuid.Parse(ev.UserRef)
	if err != nil {
		log.WarnContext(ctx, "activation event has a malformed user id, dropping",
			logger.Error(errors.Join(ErrInvalidUserID, err)))
		return OutcomeDropped, nil
	}
	return s.applyToUser(ctx, userID, ev)
}

func (s *Service) applyToUser(ctx context.Context, userID uuid.UUID, ev *WebhookEvent) (Outcome, error) {
	current, err := s.store.GetByUserID(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		current = Free(userID)
	} else if err != nil {
		return "", fmt.Errorf("load subscription for user %s: %w", userID, err)
	}
	return s.transition(ctx, current, ev)
}

func (s *Service) applyToExternal(ctx context.Context, log *slog.Logger, ev *WebhookEvent) (Outcome, error) {
	if ev.ExternalID == "" {
		log.WarnContext(ctx, "billing event has no subscription id, dropping")
		return OutcomeDropped, nil
	}
	current, err := s.store.GetByExternalID(ctx, ev.ExternalID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		log.WarnContext(ctx, "no local subscription matches billing event, dropping")
		return OutcomeDropped, nil
	}
	if err != nil {
		return "", fmt.Errorf("load subscription %s: %w", ev.ExternalID, err)
	}

	outcome, err := s.transition(ctx, current, ev)
	if statemachine.IsNoTransition(err) {
		log.WarnContext(ctx, "billing event does not apply to current state, dropping",
			logger.UserID(current.UserID), slog.String("state", string(current.State())))
		return OutcomeDropped, nil
	}
	return outcome, err
}

// transition writes the next state unless it equals the stored one.
func (s *Service) transition(ctx context.Context, current *Subscription, ev *WebhookEvent) (Outcome, error) {
	next, err := lifecycle.Next(current.State(), ev.Type)
	if err != nil {
		return "", err
	}

	updated := *current
	updated.Plan, updated.Status = next.Split()
	if next == StateProActive && ev.ExternalID != "" {
		updated.ExternalID = ev.ExternalID
	}
	if ev.CurrentPeriodEnd != nil {
		end := ev.CurrentPeriodEnd.UTC()
		updated.CurrentPeriodEnd = &end
	}

	if current.ID != uuid.Nil && current.sameState(&updated) {
		return OutcomeNoop, nil
	}

	now := s.now().UTC()
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = now
	}
	updated.UpdatedAt = now
	if err := s.store.Upsert(ctx, &updated); err != nil {
		return "", fmt.Errorf("save subscription for user %s: %w", updated.UserID, err)
	}

	s.log.InfoContext(ctx, "subscription updated",
		logger.Component("subscription"),
		logger.UserID(updated.UserID),
		logger.EventType(string(ev.Type)),
		slog.String("from", string(current.State())),
		slog.String("to", string(next)),
	)
	return OutcomeApplied, nil
}
