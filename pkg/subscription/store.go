package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store persists subscriptions. Lookups return ErrSubscriptionNotFound when no row matches.
type Store interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// GetByExternalID serves webhook events that carry only the provider id.
	GetByExternalID(ctx context.Context, externalID string) (*Subscription, error)

	// Upsert inserts or updates the row identified by UserID.
	Upsert(ctx context.Context, sub *Subscription) error

	// EnsureFree inserts a free/active row unless the user already has one.
	EnsureFree(ctx context.Context, userID uuid.UUID) error
}
