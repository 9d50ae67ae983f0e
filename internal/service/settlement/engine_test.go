package settlement

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
	"gigmarket/internal/processor"
	"gigmarket/internal/repository"
	"gigmarket/internal/repository/memstore"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/config"
	"gigmarket/pkg/rbac"
)

type fakeProcessor struct {
	mu        sync.Mutex
	intents   map[string]*processor.Intent
	customers int
	cancelled []string
	err       error
	// onCancel runs after the processor accepted a cancellation.
	onCancel func(subscriptionID string)
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{intents: map[string]*processor.Intent{}}
}

func (f *fakeProcessor) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*processor.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	in := &processor.Intent{ID: "pi_" + uuid.NewString(), Status: "requires_payment_method", Amount: amount, Currency: currency, Metadata: metadata}
	f.intents[in.ID] = in
	return in, nil
}

func (f *fakeProcessor) RetrieveIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	in, ok := f.intents[intentID]
	if !ok {
		return nil, apperror.NotFound("processor object not found")
	}
	return in, nil
}

func (f *fakeProcessor) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers++
	return "cus_" + metadata["userId"], nil
}

func (f *fakeProcessor) CreateSubscription(ctx context.Context, customerID, priceID string) (*processor.Subscription, error) {
	return &processor.Subscription{ID: "sub_" + uuid.NewString(), CustomerID: customerID, Status: "incomplete"}, nil
}

func (f *fakeProcessor) CancelSubscription(ctx context.Context, subscriptionID string) (*processor.Subscription, error) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, subscriptionID)
	hook := f.onCancel
	f.mu.Unlock()
	if hook != nil {
		hook(subscriptionID)
	}
	return &processor.Subscription{ID: subscriptionID, CancelAtPeriodEnd: true, CurrentPeriodEnd: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeProcessor) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[id].Status = processor.IntentSucceeded
}

type fixture struct {
	store      *memstore.Store
	proc       *fakeProcessor
	engine     *Engine
	client     uuid.UUID
	freelancer uuid.UUID
	project    uuid.UUID
}

func market() config.MarketConfig {
	return config.MarketConfig{
		CommissionRate:   decimal.RequireFromString("0.15"),
		FreeMonthlyLimit: 10,
		Currency:         "usd",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	proc := newFakeProcessor()
	f := &fixture{
		store:  store,
		proc:   proc,
		engine: NewEngine(store, proc, market(), zap.NewNop()),
	}
	for _, id := range []*uuid.UUID{&f.client, &f.freelancer} {
		a := &model.Account{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Role: rbac.RoleFreelancer}
		require.NoError(t, store.CreateAccount(ctx, a))
		*id = a.ID
	}
	p := &model.Project{
		ID:           uuid.New(),
		GigID:        uuid.New(),
		BidID:        uuid.New(),
		ClientID:     f.client,
		FreelancerID: f.freelancer,
		Status:       model.ProjectActive,
		Budget:       model.ProjectBudget{Type: model.BudgetFixed, Amount: decimal.NewFromInt(500), Currency: "usd"},
	}
	require.NoError(t, store.CreateProject(ctx, p))
	f.project = p.ID
	return f
}

func TestSplit(t *testing.T) {
	rate := decimal.RequireFromString("0.15")
	tests := []struct {
		total, fee, earnings string
	}{
		{"100.00", "15.00", "85.00"},
		{"33.33", "5.00", "28.33"},
		{"0.01", "0.00", "0.01"},
		{"19.99", "3.00", "16.99"},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			fee, earn := Split(total, rate)
			assert.Equal(t, tt.fee, fee.StringFixed(2))
			assert.Equal(t, tt.earnings, earn.StringFixed(2))
			assert.True(t, fee.Add(earn).Equal(total))
		})
	}
}

func TestApplyCaptureIsIdempotentPerReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.engine.ApplyCapture(ctx, f.project, decimal.NewFromInt(100), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "100.00", p.Payment.PaidAmount.StringFixed(2))
	assert.Equal(t, "15.00", p.Payment.PlatformFee.StringFixed(2))
	assert.Equal(t, "85.00", p.Payment.FreelancerEarnings.StringFixed(2))

	_, err = f.engine.ApplyCapture(ctx, f.project, decimal.NewFromInt(100), "pi_1")
	require.NoError(t, err)

	acct, err := f.store.GetAccount(ctx, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, "85.00", acct.Balance.StringFixed(2))

	p, err = f.engine.ApplyCapture(ctx, f.project, decimal.RequireFromString("33.33"), "pi_2")
	require.NoError(t, err)
	assert.Equal(t, "133.33", p.Payment.PaidAmount.StringFixed(2))
	assert.True(t, p.Payment.PlatformFee.Add(p.Payment.FreelancerEarnings).Equal(p.Payment.PaidAmount))

	acct, err = f.store.GetAccount(ctx, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, "113.33", acct.Balance.StringFixed(2))
}

func TestApplyCaptureConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.ApplyCapture(ctx, f.project, decimal.NewFromInt(200), "pi_dup")
		}()
	}
	wg.Wait()

	acct, err := f.store.GetAccount(ctx, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, "170.00", acct.Balance.StringFixed(2))
}

func TestApplyCaptureUnknownProject(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ApplyCapture(context.Background(), uuid.New(), decimal.NewFromInt(10), "pi_x")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestConfirmCapture(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	intent, err := f.engine.CreatePaymentIntent(ctx, f.project, f.client, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, f.project.String(), intent.Metadata["projectId"])

	_, err = f.engine.ConfirmCapture(ctx, f.project, f.client, rbac.RoleClient, intent.ID)
	assert.True(t, apperror.Is(err, apperror.KindPaymentNotCompleted))

	f.proc.succeed(intent.ID)
	p, err := f.engine.ConfirmCapture(ctx, f.project, f.client, rbac.RoleClient, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", p.Payment.PaidAmount.StringFixed(2))
	assert.Equal(t, "500.00", p.Payment.EscrowAmount.StringFixed(2))
	assert.Equal(t, intent.ID, p.Payment.ExternalRef)

	_, err = f.engine.ConfirmCapture(ctx, f.project, f.freelancer, rbac.RoleFreelancer, intent.ID)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestConfirmCaptureProcessorDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.proc.err = apperror.ServiceUnavailable("payment processor call failed", context.DeadlineExceeded)

	_, err := f.engine.ConfirmCapture(ctx, f.project, f.client, rbac.RoleClient, "pi_any")
	assert.True(t, apperror.Is(err, apperror.KindServiceUnavailable))
}

func TestHandleCaptureEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{
		"id":"pi_hook","status":"succeeded","amount":10000,"currency":"usd",
		"metadata":{"projectId":"` + f.project.String() + `"}}}}`)
	ev, err := processor.ParseEvent(body)
	require.NoError(t, err)

	require.NoError(t, f.engine.HandleEvent(ctx, ev))
	require.NoError(t, f.engine.HandleEvent(ctx, ev))

	acct, err := f.store.GetAccount(ctx, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, "85.00", acct.Balance.StringFixed(2))
}

func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sub, err := f.engine.Subscribe(ctx, f.client, "price_pro")
	require.NoError(t, err)

	acct, err := f.store.GetAccount(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, model.TierPremium, acct.Subscription.Tier)
	assert.Equal(t, model.UnlimitedQuota, acct.Quota.MonthlyLimit)
	assert.Equal(t, "cus_"+f.client.String(), acct.Subscription.CustomerID)

	_, err = f.engine.Subscribe(ctx, f.client, "price_pro")
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	acct, err = f.engine.CancelSubscription(ctx, f.client)
	require.NoError(t, err)
	assert.True(t, acct.Subscription.CancelAtPeriodEnd)
	assert.Equal(t, model.TierPremium, acct.Subscription.Tier)
	assert.Equal(t, []string{sub.ID}, f.proc.cancelled)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.engine.ApplySubscriptionCancellation(ctx, sub.ID))
	}
	acct, err = f.store.GetAccount(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, acct.Subscription.Tier)
	assert.Empty(t, acct.Subscription.SubscriptionID)
	assert.Equal(t, 10, acct.Quota.MonthlyLimit)

	_, err = f.engine.CancelSubscription(ctx, f.client)
	assert.True(t, apperror.Is(err, apperror.KindInvalidState))

	_, err = f.engine.Subscribe(ctx, f.client, "price_pro")
	require.NoError(t, err)
	assert.Equal(t, 1, f.proc.customers)
}

func TestSubscriptionEventsOutOfOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.ApplySubscriptionCancellation(ctx, "sub_late"))
	require.NoError(t, f.engine.ApplySubscriptionActivation(ctx, f.client, "sub_late", nil))

	acct, err := f.store.GetAccount(ctx, f.client)
	require.NoError(t, err)
	assert.NotEqual(t, model.TierPremium, acct.Subscription.Tier)
	assert.Empty(t, acct.Subscription.SubscriptionID)

	require.NoError(t, f.engine.ApplySubscriptionActivation(ctx, f.client, "sub_live", nil))
	require.NoError(t, f.engine.ApplySubscriptionCancellation(ctx, "sub_live"))
	acct, err = f.store.GetAccount(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, acct.Subscription.Tier)
}

func TestCancelSubscriptionAfterDeletionLanded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sub, err := f.engine.Subscribe(ctx, f.client, "price_pro")
	require.NoError(t, err)
	f.proc.onCancel = func(id string) {
		require.NoError(t, f.engine.ApplySubscriptionCancellation(ctx, id))
	}

	acct, err := f.engine.CancelSubscription(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, []string{sub.ID}, f.proc.cancelled)
	assert.Equal(t, model.TierFree, acct.Subscription.Tier)
	assert.Empty(t, acct.Subscription.SubscriptionID)
	assert.False(t, acct.Subscription.CancelAtPeriodEnd)
	assert.Equal(t, 10, acct.Quota.MonthlyLimit)
}

func TestLateDeletionKeepsNewerSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.ApplySubscriptionActivation(ctx, f.client, "sub_old", nil))
	require.NoError(t, f.engine.ApplySubscriptionActivation(ctx, f.client, "sub_new", nil))
	require.NoError(t, f.engine.ApplySubscriptionCancellation(ctx, "sub_old"))

	acct, err := f.store.GetAccount(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, model.TierPremium, acct.Subscription.Tier)
	assert.Equal(t, "sub_new", acct.Subscription.SubscriptionID)
}

// lockRecorder logs the locking and subscription writes a transaction makes.
type lockRecorder struct {
	*memstore.Store
	calls []string
}

type recordingQueries struct {
	repository.Queries
	r *lockRecorder
}

func (r *lockRecorder) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	return r.Store.WithTx(ctx, func(q repository.Queries) error {
		return fn(recordingQueries{Queries: q, r: r})
	})
}

func (q recordingQueries) LockSubscription(ctx context.Context, subscriptionID string) error {
	q.r.calls = append(q.r.calls, "lock_subscription")
	return q.Queries.LockSubscription(ctx, subscriptionID)
}

func (q recordingQueries) IsSubscriptionCancelled(ctx context.Context, subscriptionID string) (bool, error) {
	q.r.calls = append(q.r.calls, "is_cancelled")
	return q.Queries.IsSubscriptionCancelled(ctx, subscriptionID)
}

func (q recordingQueries) MarkSubscriptionCancelled(ctx context.Context, subscriptionID string, at time.Time) error {
	q.r.calls = append(q.r.calls, "mark_cancelled")
	return q.Queries.MarkSubscriptionCancelled(ctx, subscriptionID, at)
}

func (q recordingQueries) LockAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	q.r.calls = append(q.r.calls, "lock_account")
	return q.Queries.LockAccount(ctx, id)
}

func (q recordingQueries) SetSubscription(ctx context.Context, id uuid.UUID, sub model.Subscription, monthlyLimit int) error {
	q.r.calls = append(q.r.calls, "set_subscription")
	return q.Queries.SetSubscription(ctx, id, sub, monthlyLimit)
}

func TestSubscriptionChangesHoldLocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := &lockRecorder{Store: f.store}
	engine := NewEngine(rec, f.proc, market(), zap.NewNop())

	require.NoError(t, engine.ApplySubscriptionActivation(ctx, f.client, "sub_1", nil))
	assert.Equal(t, []string{"lock_subscription", "is_cancelled", "lock_account", "set_subscription"}, rec.calls)

	rec.calls = nil
	require.NoError(t, engine.ApplySubscriptionCancellation(ctx, "sub_1"))
	assert.Equal(t, []string{"lock_subscription", "mark_cancelled", "lock_account", "set_subscription"}, rec.calls)

	// marker already present: no account write
	rec.calls = nil
	require.NoError(t, engine.ApplySubscriptionActivation(ctx, f.client, "sub_1", nil))
	assert.Equal(t, []string{"lock_subscription", "is_cancelled"}, rec.calls)
}
