package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository/memstore"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/config"
	"gigmarket/pkg/rbac"
	"gigmarket/pkg/util"
)

func newService() *Service {
	return NewService(memstore.New(),
		config.JWTConfig{Secret: "test-secret", TTL: time.Hour},
		config.MarketConfig{FreeMonthlyLimit: 10},
		zap.NewNop())
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	sess, err := svc.Register(ctx, RegisterInput{Email: "Ana@Example.com", Password: "s3cret-pass", Role: rbac.RoleClient})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", sess.Account.Email)
	assert.Equal(t, model.TierFree, sess.Account.Subscription.Tier)
	assert.Equal(t, 10, sess.Account.Quota.MonthlyLimit)
	assert.NotEqual(t, "s3cret-pass", sess.Account.PasswordHash)

	id, role, err := util.ParseJWT(sess.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, sess.Account.ID, id)
	assert.Equal(t, rbac.RoleClient, role)

	login, err := svc.Login(ctx, "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, sess.Account.ID, login.Account.ID)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-pass")
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
	_, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "password1"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   RegisterInput
		kind apperror.Kind
	}{
		{"duplicate email", RegisterInput{Email: "DUP@example.com", Password: "password1"}, apperror.KindConflict},
		{"bad email", RegisterInput{Email: "not-an-email", Password: "password1"}, apperror.KindInvalidArgument},
		{"short password", RegisterInput{Email: "a@example.com", Password: "short"}, apperror.KindInvalidArgument},
		{"admin role", RegisterInput{Email: "b@example.com", Password: "password1", Role: rbac.RoleAdmin}, apperror.KindInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
}
