package repository

import (
	"context"
	"time"
)

// SubscriptionRepository remembers subscriptions the processor reported as
// cancelled, so a late activation for the same reference is ignored.
type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// LockSubscription takes a transaction-scoped advisory lock on the
// subscription reference. The cancelled marker may not exist yet, so there is
// no row to lock.
func (r *SubscriptionRepository) LockSubscription(ctx context.Context, subscriptionID string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, subscriptionID)
	return mapErr(err)
}

func (r *SubscriptionRepository) MarkSubscriptionCancelled(ctx context.Context, subscriptionID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO cancelled_subscriptions (subscription_id, cancelled_at)
        VALUES ($1, $2)
        ON CONFLICT (subscription_id) DO NOTHING
    `, subscriptionID, at)
	return mapErr(err)
}

func (r *SubscriptionRepository) IsSubscriptionCancelled(ctx context.Context, subscriptionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM cancelled_subscriptions WHERE subscription_id = $1)
    `, subscriptionID).Scan(&exists)
	return exists, mapErr(err)
}
