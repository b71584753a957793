package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Plan is the subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Status is the billing status of a subscription row.
type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Subscription is the one row per user describing their tier.
// ExternalID is the provider's subscription id and is empty for free users.
type Subscription struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Plan             Plan
	Status           Status
	ExternalID       string
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Free returns the implicit subscription of a user without a stored row.
func Free(userID uuid.UUID) *Subscription {
	return &Subscription{UserID: userID, Plan: PlanFree, Status: StatusActive}
}

// IsPro reports whether the user currently holds Pro entitlements.
// A pro row that is not active counts as free.
func (s *Subscription) IsPro() bool {
	return s != nil && s.Plan == PlanPro && s.Status == StatusActive
}

// State collapses plan and status into a lifecycle state.
func (s *Subscription) State() State {
	switch {
	case s.Status == StatusCanceled:
		return StateFreeCanceled
	case s.Plan == PlanPro && s.Status == StatusActive:
		return StateProActive
	case s.Plan == PlanPro && s.Status == StatusPastDue:
		return StateProPastDue
	case s.Status == StatusPastDue:
		return StateFreePastDue
	default:
		return StateFreeActive
	}
}

// sameState compares the fields a transition can change.
func (s *Subscription) sameState(o *Subscription) bool {
	if s.Plan != o.Plan || s.Status != o.Status || s.ExternalID != o.ExternalID {
		return false
	}
	switch {
	case s.CurrentPeriodEnd == nil && o.CurrentPeriodEnd == nil:
		return true
	case s.CurrentPeriodEnd == nil || o.CurrentPeriodEnd == nil:
		return false
	default:
		return s.CurrentPeriodEnd.Equal(*o.CurrentPeriodEnd)
	}
}
