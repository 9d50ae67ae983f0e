package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository/memstore"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/config"
)

var (
	jan15 = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	jan31 = time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC)
	feb01 = time.Date(2026, 2, 1, 0, 1, 0, 0, time.UTC)
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newLedger(t *testing.T, now time.Time) (*Ledger, *memstore.Store, *clock) {
	t.Helper()
	store := memstore.New()
	c := &clock{t: now}
	l, err := NewLedger(store, config.MarketConfig{
		CommissionRate:   decimal.RequireFromString("0.15"),
		FreeMonthlyLimit: 10,
		Location:         "UTC",
	}, zap.NewNop())
	require.NoError(t, err)
	return l.WithClock(c.Now), store, c
}

func seedAccount(t *testing.T, store *memstore.Store, tier string, used, limit int, lastReset time.Time) uuid.UUID {
	t.Helper()
	a := &model.Account{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		Role:         "freelancer",
		Subscription: model.Subscription{Tier: tier},
		Quota:        model.QuotaState{MonthlyLimit: limit, MonthlyUsed: used, LastResetDate: lastReset},
	}
	require.NoError(t, store.CreateAccount(context.Background(), a))
	return a.ID
}

func TestNeedsReset(t *testing.T) {
	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want bool
	}{
		{"same month", jan15, jan31, false},
		{"next month", jan31, feb01, true},
		{"same month a year later", jan15, jan15.AddDate(1, 0, 0), true},
		{"same instant", jan15, jan15, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsReset(tt.last, tt.now, time.UTC))
		})
	}
}

func TestNeedsResetUsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2026-01-31 20:00 UTC is already February in Tokyo
	last := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC)
	assert.False(t, NeedsReset(last, now, time.UTC))
	assert.True(t, NeedsReset(last, now, tokyo))
}

func TestPureResetIsIdempotentWithinMonth(t *testing.T) {
	q := model.QuotaState{MonthlyLimit: 10, MonthlyUsed: 8, LastResetDate: jan15}

	assert.True(t, ResetIfNeeded(&q, feb01, time.UTC))
	assert.Equal(t, 0, q.MonthlyUsed)

	q.MonthlyUsed = 3
	assert.False(t, ResetIfNeeded(&q, feb01.Add(time.Hour), time.UTC))
	assert.False(t, ResetIfNeeded(&q, feb01.Add(48*time.Hour), time.UTC))
	assert.Equal(t, 3, q.MonthlyUsed)
}

func TestCheckAndReserveRejectsExhaustedFreeTier(t *testing.T) {
	l, store, _ := newLedger(t, jan31)
	id := seedAccount(t, store, model.TierFree, 10, 10, jan15)

	d, err := l.CheckAndReserve(context.Background(), id)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindQuotaExceeded))
	assert.False(t, d.Allowed)
}

func TestCheckAndReserveAcceptsUnlimitedTiers(t *testing.T) {
	for _, tier := range []string{model.TierPremium, model.TierEnterprise} {
		t.Run(tier, func(t *testing.T) {
			l, store, _ := newLedger(t, jan31)
			id := seedAccount(t, store, tier, 10, 10, jan15)

			d, err := l.CheckAndReserve(context.Background(), id)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, model.UnlimitedQuota, d.Remaining)
		})
	}
}

func TestCheckAndReserveDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, jan31)
	id := seedAccount(t, store, model.TierFree, 9, 10, jan15)

	for i := 0; i < 3; i++ {
		d, err := l.CheckAndReserve(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, d.Remaining)
	}

	require.NoError(t, l.RecordUsage(ctx, id))
	_, err := l.CheckAndReserve(ctx, id)
	assert.True(t, apperror.Is(err, apperror.KindQuotaExceeded))
}

func TestMonthBoundaryResetsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	l, store, c := newLedger(t, jan31)
	id := seedAccount(t, store, model.TierFree, 10, 10, jan15)

	_, err := l.CheckAndReserve(ctx, id)
	require.Error(t, err)

	c.Set(feb01)
	d, err := l.CheckAndReserve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, d.Remaining)

	require.NoError(t, l.RecordUsage(ctx, id))
	require.NoError(t, l.RecordUsage(ctx, id))

	// later in February: no second reset
	c.Set(feb01.Add(72 * time.Hour))
	acct, err := l.ResetIfNeeded(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, acct.Quota.MonthlyUsed)
	assert.True(t, acct.Quota.LastResetDate.Equal(feb01))
}

func TestConcurrentResetAppliesOnce(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, feb01)
	id := seedAccount(t, store, model.TierFree, 10, 10, jan15)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ResetIfNeeded(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// one usage recorded after the resets must survive
	require.NoError(t, l.RecordUsage(ctx, id))
	acct, err := l.ResetIfNeeded(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, acct.Quota.MonthlyUsed)
}

func TestUsageReport(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, jan31)
	free := seedAccount(t, store, model.TierFree, 4, 10, jan15)
	premium := seedAccount(t, store, model.TierPremium, 40, model.UnlimitedQuota, jan15)

	u, err := l.Usage(ctx, free)
	require.NoError(t, err)
	assert.Equal(t, Usage{Tier: model.TierFree, Used: 4, Limit: 10, Remaining: 6, LastResetDate: jan15}, u)

	u, err = l.Usage(ctx, premium)
	require.NoError(t, err)
	assert.Equal(t, model.UnlimitedQuota, u.Limit)
	assert.Equal(t, model.UnlimitedQuota, u.Remaining)

	_, err = l.Usage(ctx, uuid.New())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestSweepResets(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newLedger(t, feb01)
	stale := seedAccount(t, store, model.TierFree, 7, 10, jan15)
	fresh := seedAccount(t, store, model.TierFree, 2, 10, feb01)

	n, err := l.SweepResets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, err := store.GetAccount(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Quota.MonthlyUsed)

	b, err := store.GetAccount(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Quota.MonthlyUsed)

	// the lazy path sees the sweep's date and does not reset again
	require.NoError(t, l.RecordUsage(ctx, stale))
	a, err = l.ResetIfNeeded(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Quota.MonthlyUsed)
}
