package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/processor"
	"gigmarket/internal/repository"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
)

// Subscribe creates the processor customer on first use, starts a
// subscription for priceID and upgrades the account.
func (e *Engine) Subscribe(ctx context.Context, accountID uuid.UUID, priceID string) (*processor.Subscription, error) {
	if priceID == "" {
		return nil, apperror.InvalidArgument("price id is required")
	}
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, repository.Translate(err, "account")
	}
	if acct.Subscription.SubscriptionID != "" && !acct.Subscription.CancelAtPeriodEnd {
		return nil, apperror.Conflict("account already has an active subscription")
	}

	customerID := acct.Subscription.CustomerID
	if customerID == "" {
		customerID, err = e.processor.CreateCustomer(ctx, acct.Email, map[string]string{"userId": acct.ID.String()})
		if err != nil {
			return nil, asUnavailable(err)
		}
		if err := e.store.SetCustomerID(ctx, accountID, customerID); err != nil {
			return nil, repository.Translate(err, "account")
		}
	}

	sub, err := e.processor.CreateSubscription(ctx, customerID, priceID)
	if err != nil {
		return nil, asUnavailable(err)
	}
	var periodEnd *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		periodEnd = &sub.CurrentPeriodEnd
	}
	if err := e.ApplySubscriptionActivation(ctx, accountID, sub.ID, periodEnd); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplySubscriptionActivation moves the account to the premium tier with an
// unlimited allowance. A subscription already reported cancelled stays
// cancelled, so a late activation cannot undo it.
func (e *Engine) ApplySubscriptionActivation(ctx context.Context, accountID uuid.UUID, subscriptionID string, periodEnd *time.Time) error {
	skipped := false
	err := e.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.LockSubscription(ctx, subscriptionID); err != nil {
			return repository.Translate(err, "subscription")
		}
		cancelled, err := q.IsSubscriptionCancelled(ctx, subscriptionID)
		if err != nil {
			return repository.Translate(err, "subscription")
		}
		if cancelled {
			skipped = true
			return nil
		}
		if _, err := q.LockAccount(ctx, accountID); err != nil {
			return repository.Translate(err, "account")
		}
		sub := model.Subscription{
			Tier:             model.TierPremium,
			SubscriptionID:   subscriptionID,
			CurrentPeriodEnd: periodEnd,
		}
		return repository.Translate(q.SetSubscription(ctx, accountID, sub, model.UnlimitedQuota), "account")
	})
	if err != nil {
		metrics.IncrementOperationError("activate_subscription", string(apperror.KindOf(err)))
		return err
	}

	log := logger.WithTrace(ctx, e.logger).With(
		zap.String("account_id", accountID.String()),
		zap.String("subscription_id", subscriptionID),
	)
	if skipped {
		log.Info("Activation ignored for cancelled subscription")
		return nil
	}
	log.Info("Subscription activated")
	return nil
}

// ApplySubscriptionCancellation reverts the subscribed account to the free
// tier. It is safe to repeat and to receive before the activation.
func (e *Engine) ApplySubscriptionCancellation(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return apperror.InvalidArgument("subscription id is required")
	}

	var reverted *uuid.UUID
	err := e.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.LockSubscription(ctx, subscriptionID); err != nil {
			return repository.Translate(err, "subscription")
		}
		if err := q.MarkSubscriptionCancelled(ctx, subscriptionID, e.now()); err != nil {
			return repository.Translate(err, "subscription")
		}
		found, err := q.GetAccountBySubscription(ctx, subscriptionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return repository.Translate(err, "account")
		}
		// a newer subscription may have replaced this one before the lock
		acct, err := q.LockAccount(ctx, found.ID)
		if err != nil {
			return repository.Translate(err, "account")
		}
		if acct.Subscription.SubscriptionID != subscriptionID {
			return nil
		}
		free := model.Subscription{Tier: model.TierFree}
		if err := q.SetSubscription(ctx, acct.ID, free, e.market.FreeMonthlyLimit); err != nil {
			return repository.Translate(err, "account")
		}
		reverted = &acct.ID
		return nil
	})
	if err != nil {
		metrics.IncrementOperationError("cancel_subscription", string(apperror.KindOf(err)))
		return err
	}

	if reverted != nil {
		logger.WithTrace(ctx, e.logger).Info("Subscription cancelled",
			zap.String("account_id", reverted.String()),
			zap.String("subscription_id", subscriptionID),
		)
	}
	return nil
}

// CancelSubscription asks the processor to stop renewing and flags the
// account. The tier changes when the processor reports the deletion.
func (e *Engine) CancelSubscription(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, repository.Translate(err, "account")
	}
	subID := acct.Subscription.SubscriptionID
	if subID == "" {
		return nil, apperror.InvalidState("no active subscription")
	}

	sub, err := e.processor.CancelSubscription(ctx, subID)
	if err != nil {
		return nil, asUnavailable(err)
	}

	var periodEnd *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		periodEnd = &end
	}
	// matches nothing once the deletion webhook has reverted the account
	if _, err := e.store.MarkCancelAtPeriodEnd(ctx, accountID, subID, periodEnd); err != nil {
		return nil, repository.Translate(err, "account")
	}
	updated, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, repository.Translate(err, "account")
	}
	return updated, nil
}
