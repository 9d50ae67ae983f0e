package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gigmarket/internal/model"
)

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
            id, email, password_hash, role,
            display_name, title, bio, location, skills,
            tier, customer_id, subscription_id, current_period_end, cancel_at_period_end,
            rating_average, rating_count, balance, total_earnings, completed_projects,
            quota_limit, quota_used, quota_last_reset, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var customerID, subscriptionID *string
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.Profile.DisplayName,
		&a.Profile.Title,
		&a.Profile.Bio,
		&a.Profile.Location,
		&a.Skills,
		&a.Subscription.Tier,
		&customerID,
		&subscriptionID,
		&a.Subscription.CurrentPeriodEnd,
		&a.Subscription.CancelAtPeriodEnd,
		&a.Rating.Average,
		&a.Rating.Count,
		&a.Balance,
		&a.TotalEarnings,
		&a.CompletedProjects,
		&a.Quota.MonthlyLimit,
		&a.Quota.MonthlyUsed,
		&a.Quota.LastResetDate,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if customerID != nil {
		a.Subscription.CustomerID = *customerID
	}
	if subscriptionID != nil {
		a.Subscription.SubscriptionID = *subscriptionID
	}
	return &a, nil
}

// CreateAccount inserts a new account; a taken email yields ErrDuplicate.
func (r *AccountRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	query := `
        INSERT INTO accounts (id, email, password_hash, role, display_name, title, bio, location, skills,
                              tier, quota_limit, quota_used, quota_last_reset)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		a.ID,
		a.Email,
		a.PasswordHash,
		a.Role,
		a.Profile.DisplayName,
		a.Profile.Title,
		a.Profile.Bio,
		a.Profile.Location,
		nonNil(a.Skills),
		a.Subscription.Tier,
		a.Quota.MonthlyLimit,
		a.Quota.MonthlyUsed,
		a.Quota.LastResetDate,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapErr(err)
}

func (r *AccountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

func (r *AccountRepository) GetAccountBySubscription(ctx context.Context, subscriptionID string) (*model.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE subscription_id = $1`, subscriptionID))
}

func (r *AccountRepository) LockAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// ResetQuota is a compare-and-set on quota_last_reset, so concurrent first
// requests of a new month reset usage exactly once.
func (r *AccountRepository) ResetQuota(ctx context.Context, id uuid.UUID, observed, now time.Time) (bool, error) {
	query := `
        UPDATE accounts
        SET quota_used = 0, quota_last_reset = $3, updated_at = NOW()
        WHERE id = $1 AND quota_last_reset = $2
    `
	tag, err := r.db.Exec(ctx, query, id, observed, now)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AccountRepository) ResetStaleQuotas(ctx context.Context, monthStart, now time.Time) (int64, error) {
	query := `
        UPDATE accounts
        SET quota_used = 0, quota_last_reset = $2, updated_at = NOW()
        WHERE quota_last_reset < $1
    `
	tag, err := r.db.Exec(ctx, query, monthStart, now)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *AccountRepository) IncrementQuotaUsage(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.db, `
        UPDATE accounts
        SET quota_used = quota_used + 1, updated_at = NOW()
        WHERE id = $1
    `, id)
}

func (r *AccountRepository) SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return execOne(ctx, r.db, `
        UPDATE accounts SET customer_id = $2, updated_at = NOW() WHERE id = $1
    `, id, customerID)
}

func (r *AccountRepository) SetSubscription(ctx context.Context, id uuid.UUID, sub model.Subscription, monthlyLimit int) error {
	return execOne(ctx, r.db, `
        UPDATE accounts
        SET tier = $2,
            subscription_id = NULLIF($3, ''),
            current_period_end = $4,
            cancel_at_period_end = $5,
            quota_limit = $6,
            updated_at = NOW()
        WHERE id = $1
    `, id, sub.Tier, sub.SubscriptionID, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, monthlyLimit)
}

func (r *AccountRepository) MarkCancelAtPeriodEnd(ctx context.Context, id uuid.UUID, subscriptionID string, periodEnd *time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE accounts
        SET cancel_at_period_end = TRUE,
            current_period_end = COALESCE($3, current_period_end),
            updated_at = NOW()
        WHERE id = $1 AND subscription_id = $2
    `, id, subscriptionID, periodEnd)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AccountRepository) CreditBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return execOne(ctx, r.db, `
        UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id = $1
    `, id, amount)
}

func (r *AccountRepository) RecordCompletion(ctx context.Context, id uuid.UUID, earnings decimal.Decimal) error {
	return execOne(ctx, r.db, `
        UPDATE accounts
        SET completed_projects = completed_projects + 1,
            total_earnings = total_earnings + $2,
            updated_at = NOW()
        WHERE id = $1
    `, id, earnings)
}

func (r *AccountRepository) CreditEarnings(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return execOne(ctx, r.db, `
        UPDATE accounts SET total_earnings = total_earnings + $2, updated_at = NOW() WHERE id = $1
    `, id, amount)
}

// ApplyRating relies on SET expressions seeing the pre-update row.
func (r *AccountRepository) ApplyRating(ctx context.Context, id uuid.UUID, rating int) error {
	return execOne(ctx, r.db, `
        UPDATE accounts
        SET rating_average = (rating_average * rating_count + $2) / (rating_count + 1),
            rating_count = rating_count + 1,
            updated_at = NOW()
        WHERE id = $1
    `, id, float64(rating))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
