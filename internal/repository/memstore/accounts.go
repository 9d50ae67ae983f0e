package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
)

func (q *queries) CreateAccount(ctx context.Context, a *model.Account) error {
	defer q.guard()()
	for _, existing := range q.s.st.accounts {
		if existing.Email == a.Email {
			return repository.ErrDuplicate
		}
	}
	if _, ok := q.s.st.accounts[a.ID]; ok {
		return repository.ErrDuplicate
	}
	a.CreatedAt = q.tick()
	a.UpdatedAt = a.CreatedAt
	q.s.st.accounts[a.ID] = *a
	return nil
}

func (q *queries) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	defer q.guard()()
	a, ok := q.s.st.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (q *queries) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	defer q.guard()()
	for _, a := range q.s.st.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (q *queries) GetAccountBySubscription(ctx context.Context, subscriptionID string) (*model.Account, error) {
	defer q.guard()()
	for _, a := range q.s.st.accounts {
		if a.Subscription.SubscriptionID != "" && a.Subscription.SubscriptionID == subscriptionID {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (q *queries) LockAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return q.GetAccount(ctx, id)
}

// update applies fn to a stored account. Callers hold the guard.
func (q *queries) update(id uuid.UUID, fn func(a *model.Account)) error {
	a, ok := q.s.st.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&a)
	a.UpdatedAt = q.s.now()
	q.s.st.accounts[id] = a
	return nil
}

func (q *queries) ResetQuota(ctx context.Context, id uuid.UUID, observed, now time.Time) (bool, error) {
	defer q.guard()()
	a, ok := q.s.st.accounts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !a.Quota.LastResetDate.Equal(observed) {
		return false, nil
	}
	a.Quota.MonthlyUsed = 0
	a.Quota.LastResetDate = now
	q.s.st.accounts[id] = a
	return true, nil
}

func (q *queries) ResetStaleQuotas(ctx context.Context, monthStart, now time.Time) (int64, error) {
	defer q.guard()()
	var n int64
	for id, a := range q.s.st.accounts {
		if a.Quota.LastResetDate.Before(monthStart) {
			a.Quota.MonthlyUsed = 0
			a.Quota.LastResetDate = now
			q.s.st.accounts[id] = a
			n++
		}
	}
	return n, nil
}

func (q *queries) IncrementQuotaUsage(ctx context.Context, id uuid.UUID) error {
	defer q.guard()()
	return q.update(id, func(a *model.Account) { a.Quota.MonthlyUsed++ })
}

func (q *queries) SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	defer q.guard()()
	return q.update(id, func(a *model.Account) { a.Subscription.CustomerID = customerID })
}

func (q *queries) SetSubscription(ctx context.Context, id uuid.UUID, sub model.Subscription, monthlyLimit int) error {
	defer q.guard()()
	return q.update(id, func(a *model.Account) {
		sub.CustomerID = a.Subscription.CustomerID
		a.Subscription = sub
		a.Quota.MonthlyLimit = monthlyLimit
	})
}

func (q *queries) MarkCancelAtPeriodEnd(ctx context.Context, id uuid.UUID, subscriptionID string, periodEnd *time.Time) (bool, error) {
	defer q.guard()()
	a, ok := q.s.st.accounts[id]
	if !ok || a.Subscription.SubscriptionID == "" || a.Subscription.SubscriptionID != subscriptionID {
		return false, nil
	}
	return true, q.update(id, func(a *model.Account) {
		a.Subscription.CancelAtPeriodEnd = true
		if periodEnd != nil {
			end := *periodEnd
			a.Subscription.CurrentPeriodEnd = &end
		}
	})
}

func (q *queries) CreditBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	defer q.guard()()
	return q.update(id, func(a *model.Account) { a.Balance = a.Balance.Add(amount) })
}

func (q *queries) RecordCompletion(ctx context.Context, id uuid.UUID, earnings decimal.Decimal) error {
	defer q.guard()()
	return q.update(id, func(a *model.Account) {
		a.CompletedProjects++
		a.TotalEarnings = a.TotalEarnings.Add(earnings)
	})
}

func (q *queries) CreditEarnings(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	defer q.guard()()
	return q.update(id, func(a *model.Account) { a.TotalEarnings = a.TotalEarnings.Add(amount) })
}

func (q *queries) ApplyRating(ctx context.Context, id uuid.UUID, rating int) error {
	defer q.guard()()
	return q.update(id, func(a *model.Account) {
		a.Rating.Average = (a.Rating.Average*float64(a.Rating.Count) + float64(rating)) / float64(a.Rating.Count+1)
		a.Rating.Count++
	})
}
