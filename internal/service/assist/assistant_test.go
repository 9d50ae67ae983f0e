package assist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository/memstore"
	"gigmarket/internal/service/quota"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/config"
)

type fakeProvider struct {
	err     error
	prompts []string
	systems []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, systemPrompt)
	if f.err != nil {
		return "", f.err
	}
	return "generated", nil
}

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, tier string, used, limit int) (*Assistant, *fakeProvider, *memstore.Store, uuid.UUID) {
	t.Helper()
	store := memstore.New()
	acct := &model.Account{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		Role:         "freelancer",
		Subscription: model.Subscription{Tier: tier},
		Quota:        model.QuotaState{MonthlyLimit: limit, MonthlyUsed: used, LastResetDate: now},
	}
	require.NoError(t, store.CreateAccount(context.Background(), acct))

	ledger, err := quota.NewLedger(store, config.MarketConfig{
		CommissionRate:   decimal.RequireFromString("0.15"),
		FreeMonthlyLimit: 10,
		Location:         "UTC",
	}, zap.NewNop())
	require.NoError(t, err)
	ledger.WithClock(func() time.Time { return now })

	p := &fakeProvider{}
	return NewAssistant(ledger, p, zap.NewNop()), p, store, acct.ID
}

func used(t *testing.T, store *memstore.Store, id uuid.UUID) int {
	t.Helper()
	acct, err := store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acct.Quota.MonthlyUsed
}

func TestGenerateConsumesOneUnit(t *testing.T) {
	a, p, store, id := setup(t, model.TierFree, 3, 10)

	res, err := a.GenerateProposal(context.Background(), id, ProposalInput{
		GigTitle: "Logo", GigDescription: "Minimal logo", Skills: []string{"illustrator", "branding"}, DeliveryDays: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", res.Text)
	assert.Equal(t, 6, res.RemainingUsage)
	assert.Equal(t, 4, used(t, store, id))
	assert.Contains(t, p.prompts[0], "My skills: illustrator, branding")
	assert.Equal(t, "You are an expert proposal writer helping freelancers win projects.", p.systems[0])
}

func TestFailedGenerationKeepsQuota(t *testing.T) {
	a, p, store, id := setup(t, model.TierFree, 9, 10)
	p.err = apperror.ServiceUnavailable("AI service temporarily unavailable", errors.New("boom"))

	_, err := a.AnalyzeRequirements(context.Background(), id, "Build a shop")
	assert.True(t, apperror.Is(err, apperror.KindServiceUnavailable))
	assert.Equal(t, 9, used(t, store, id))

	p.err = nil
	_, err = a.AnalyzeRequirements(context.Background(), id, "Build a shop")
	require.NoError(t, err)
	assert.Equal(t, 10, used(t, store, id))

	_, err = a.AnalyzeRequirements(context.Background(), id, "Build a shop")
	assert.True(t, apperror.Is(err, apperror.KindQuotaExceeded))
	assert.Len(t, p.prompts, 2)
}

func TestPremiumIsUnlimited(t *testing.T) {
	a, _, _, id := setup(t, model.TierPremium, 500, model.UnlimitedQuota)

	res, err := a.GenerateGigIdeas(context.Background(), id, GigIdeasInput{Topic: "podcasts", Category: "music"})
	require.NoError(t, err)
	assert.Equal(t, model.UnlimitedQuota, res.RemainingUsage)
}

func TestGenerateContentPrompts(t *testing.T) {
	a, p, _, id := setup(t, model.TierFree, 0, 10)
	ctx := context.Background()

	_, err := a.GenerateContent(ctx, id, ContentInput{Type: "tagline", Prompt: "Coffee brand", Context: "Eco friendly"})
	require.NoError(t, err)
	_, err = a.GenerateContent(ctx, id, ContentInput{Type: "poem", Prompt: "Spring"})
	require.NoError(t, err)

	assert.Equal(t, "You are a creative copywriter specializing in taglines.", p.systems[0])
	assert.Equal(t, "Context: Eco friendly\n\nTask: Coffee brand", p.prompts[0])
	assert.Equal(t, "You are a helpful creative assistant.", p.systems[1])
	assert.Equal(t, "Spring", p.prompts[1])
}

func TestInvalidInputSkipsProvider(t *testing.T) {
	a, p, store, id := setup(t, model.TierFree, 0, 10)

	_, err := a.GenerateGigIdeas(context.Background(), id, GigIdeasInput{})
	assert.True(t, apperror.Is(err, apperror.KindInvalidArgument))
	assert.Empty(t, p.prompts)
	assert.Equal(t, 0, used(t, store, id))
}
