package subscription

import "time"

// EventType is a normalised billing event. Razorpay names are used as-is.
type EventType string

const (
	EventPaymentVerified EventType = "payment.verified"
	EventActivated       EventType = "subscription.activated"
	EventCancelled       EventType = "subscription.cancelled"
	EventExpired         EventType = "subscription.expired"
	EventPaused          EventType = "subscription.paused"
	EventResumed         EventType = "subscription.resumed"
)

// Provider names used for event attribution and dedupe keys.
const (
	ProviderRazorpay = "razorpay"
	ProviderPaddle   = "paddle"
)

// WebhookEvent is a provider event after signature verification and parsing.
type WebhookEvent struct {
	ID       string // provider delivery id, may be empty
	Provider string
	Type     EventType

	ExternalID string
	// UserRef is the local user id recovered from provider notes or custom data.
	// Only activation events are expected to carry it.
	UserRef          string
	Status           string
	CurrentPeriodEnd *time.Time
}
