package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/pg"
	"github.com/dmitrymomot/invoicer/pkg/subscription"
)

type SubscriptionRepository struct {
	db DB
}

func NewSubscriptionRepository(db DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const externalIDConstraint = "subscriptions_razorpay_subscription_id_key"

const subscriptionColumns = `id, user_id, plan, status, COALESCE(razorpay_subscription_id, ''), current_period_end, created_at, updated_at`

func (r *SubscriptionRepository) scanOne(ctx context.Context, query string, arg any) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&sub.ID, &sub.UserID, &sub.Plan, &sub.Status,
		&sub.ExternalID, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	return r.scanOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
}

func (r *SubscriptionRepository) GetByExternalID(ctx context.Context, externalID string) (*subscription.Subscription, error) {
	return r.scanOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE razorpay_subscription_id = $1`, externalID)
}

// Upsert writes sub keyed by user id and fills in the stored id.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *subscription.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	query := `
		INSERT INTO subscriptions (id, user_id, plan, status, razorpay_subscription_id, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			razorpay_subscription_id = EXCLUDED.razorpay_subscription_id,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		sub.ID, sub.UserID, sub.Plan, sub.Status,
		sub.ExternalID, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt,
	).Scan(&sub.ID)
	if pg.IsDuplicateKeyError(err, externalIDConstraint) {
		return subscription.ErrExternalIDInUse
	}
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) EnsureFree(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan, status)
		VALUES ($1, $2, 'free', 'active')
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID)
	if err != nil {
		return fmt.Errorf("failed to ensure free subscription: %w", err)
	}
	return nil
}
