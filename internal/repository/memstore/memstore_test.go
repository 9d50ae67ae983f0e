package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
)

func newAccount(email string) *model.Account {
	return &model.Account{
		ID:           uuid.New(),
		Email:        email,
		Role:         "freelancer",
		Subscription: model.Subscription{Tier: model.TierFree},
		Quota:        model.QuotaState{MonthlyLimit: 10, LastResetDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newAccount("a@example.com")
	require.NoError(t, s.CreateAccount(ctx, a))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(q repository.Queries) error {
		require.NoError(t, q.CreditBalance(ctx, a.ID, decimal.NewFromInt(50)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
}

func TestDuplicateEmailAndBid(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateAccount(ctx, newAccount("dup@example.com")))
	assert.ErrorIs(t, s.CreateAccount(ctx, newAccount("dup@example.com")), repository.ErrDuplicate)

	gig := &model.Gig{ID: uuid.New(), ClientID: uuid.New(), Status: model.GigOpen}
	require.NoError(t, s.CreateGig(ctx, gig))
	freelancer := uuid.New()
	require.NoError(t, s.CreateBid(ctx, &model.Bid{ID: uuid.New(), GigID: gig.ID, FreelancerID: freelancer}))
	err := s.CreateBid(ctx, &model.Bid{ID: uuid.New(), GigID: gig.ID, FreelancerID: freelancer})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestResetQuotaCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newAccount("q@example.com")
	a.Quota.MonthlyUsed = 7
	require.NoError(t, s.CreateAccount(ctx, a))

	now := time.Date(2026, 2, 1, 0, 0, 1, 0, time.UTC)
	applied, err := s.ResetQuota(ctx, a.ID, a.Quota.LastResetDate, now)
	require.NoError(t, err)
	assert.True(t, applied)

	// a second writer that observed the old date loses
	applied, err = s.ResetQuota(ctx, a.ID, a.Quota.LastResetDate, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quota.MonthlyUsed)
	assert.True(t, got.Quota.LastResetDate.Equal(now))
}

func TestSetReviewIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &model.Project{ID: uuid.New(), GigID: uuid.New(), Status: model.ProjectCompleted}
	require.NoError(t, s.CreateProject(ctx, p))

	ok, err := s.SetReview(ctx, p.ID, model.ReviewerClient, model.Review{Rating: 5})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetReview(ctx, p.ID, model.ReviewerClient, model.Review{Rating: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClientReview)
	assert.Equal(t, 5, got.ClientReview.Rating)
	assert.Nil(t, got.FreelancerReview)
}

func TestMarkCancelAtPeriodEndMatchesSubscription(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newAccount("sub@example.com")
	require.NoError(t, s.CreateAccount(ctx, a))
	require.NoError(t, s.SetSubscription(ctx, a.ID, model.Subscription{Tier: model.TierPremium, SubscriptionID: "sub_1"}, model.UnlimitedQuota))

	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	ok, err := s.MarkCancelAtPeriodEnd(ctx, a.ID, "sub_other", &end)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkCancelAtPeriodEnd(ctx, a.ID, "sub_1", &end)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Subscription.CancelAtPeriodEnd)
	assert.Equal(t, end, *got.Subscription.CurrentPeriodEnd)
	assert.Equal(t, model.TierPremium, got.Subscription.Tier)
	assert.Equal(t, model.UnlimitedQuota, got.Quota.MonthlyLimit)

	// reverted accounts no longer match
	require.NoError(t, s.SetSubscription(ctx, a.ID, model.Subscription{Tier: model.TierFree}, 10))
	ok, err = s.MarkCancelAtPeriodEnd(ctx, a.ID, "sub_1", &end)
	require.NoError(t, err)
	assert.False(t, ok)
}
