// Package auth registers accounts and issues bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/config"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/rbac"
	"gigmarket/pkg/util"
)

type RegisterInput struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Role     string        `json:"role"`
	Profile  model.Profile `json:"profile"`
	Skills   []string      `json:"skills"`
}

type Session struct {
	Token   string         `json:"token"`
	Account *model.Account `json:"account"`
}

type Service struct {
	store     repository.Store
	jwt       config.JWTConfig
	freeLimit int
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store repository.Store, jwt config.JWTConfig, market config.MarketConfig, log *zap.Logger) *Service {
	if jwt.TTL == 0 {
		jwt.TTL = 24 * time.Hour
	}
	return &Service{
		store:     store,
		jwt:       jwt,
		freeLimit: market.FreeMonthlyLimit,
		logger:    log,
		now:       time.Now,
	}
}

// Register creates a free-tier account. The role chosen here never changes.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.InvalidArgument("a valid email is required")
	}
	if len(in.Password) < util.MinPasswordLength {
		return nil, apperror.InvalidArgument("password must be at least 8 characters")
	}
	if in.Role == "" {
		in.Role = rbac.RoleFreelancer
	}
	// admins are provisioned out of band
	if in.Role != rbac.RoleFreelancer && in.Role != rbac.RoleClient {
		return nil, apperror.InvalidArgument("role must be freelancer or client")
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("failed to hash password", err)
	}

	acct := &model.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		Profile:      in.Profile,
		Skills:       in.Skills,
		Subscription: model.Subscription{Tier: model.TierFree},
		Quota: model.QuotaState{
			MonthlyLimit:  s.freeLimit,
			LastResetDate: s.now(),
		},
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, repository.Translate(err, "account")
	}

	token, err := util.GenerateJWT(acct.ID, acct.Role, s.jwt.Secret, s.jwt.TTL)
	if err != nil {
		return nil, apperror.Internal("failed to issue token", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Account registered",
		zap.String("account_id", acct.ID.String()),
		zap.String("role", acct.Role),
	)
	return &Session{Token: token, Account: acct}, nil
}

// Login checks the credentials and issues a token carrying the role.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	acct, err := s.store.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, repository.Translate(err, "account")
	}
	if !util.CheckPassword(password, acct.PasswordHash) {
		return nil, apperror.Unauthenticated("invalid email or password")
	}

	token, err := util.GenerateJWT(acct.ID, acct.Role, s.jwt.Secret, s.jwt.TTL)
	if err != nil {
		return nil, apperror.Internal("failed to issue token", err)
	}
	return &Session{Token: token, Account: acct}, nil
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, repository.Translate(err, "account")
	}
	return acct, nil
}
