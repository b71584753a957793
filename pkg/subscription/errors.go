package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrExternalIDInUse      = errors.New("provider subscription id belongs to another user")
	ErrInvalidUserID        = errors.New("invalid user id in billing event")
	ErrPlanNotConfigured    = errors.New("subscription plan is not configured")
	ErrProviderError        = errors.New("subscription provider error")
	ErrMissingCredentials   = errors.New("billing provider credentials are not configured")
	ErrMissingAPIKey        = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret = errors.New("billing provider webhook secret is required")
	ErrInvalidEnvironment   = errors.New("invalid billing provider environment")
	ErrWebhookVerification  = errors.New("webhook signature verification failed")
	ErrInvalidWebhook       = errors.New("invalid webhook payload")
	ErrNoCheckoutURL        = errors.New("no checkout URL returned from provider")
	ErrMissingPriceID       = errors.New("price ID is required")
)

// PlanConfigError reports a billing cycle whose provider plan id is absent or
// malformed. Its message is safe to show to users.
type PlanConfigError struct {
	Cycle  BillingCycle
	PlanID string
}

func (e *PlanConfigError) Error() string {
	return fmt.Sprintf("%s plan not configured. Please contact support.", e.Cycle.Label())
}

func (e *PlanConfigError) Unwrap() error { return ErrPlanNotConfigured }

// ProviderError carries the provider's own error description.
type ProviderError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Description)
}

func (e *ProviderError) Unwrap() error { return ErrProviderError }
