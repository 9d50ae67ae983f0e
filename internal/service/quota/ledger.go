// Package quota meters AI-assist calls per account and resets the allowance
// on calendar-month boundaries.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/config"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
)

// Decision is the outcome of a quota check. Remaining and Limit are
// model.UnlimitedQuota for unbounded tiers.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
	Used      int
}

// Usage is the allowance report shown to the account owner.
type Usage struct {
	Tier          string    `json:"tier"`
	Used          int       `json:"used"`
	Limit         int       `json:"limit"`
	Remaining     int       `json:"remaining"`
	LastResetDate time.Time `json:"last_reset_date"`
}

type Ledger struct {
	store     repository.Store
	loc       *time.Location
	freeLimit int
	logger    *zap.Logger
	now       func() time.Time
}

func NewLedger(store repository.Store, cfg config.MarketConfig, log *zap.Logger) (*Ledger, error) {
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid quota location %q: %w", cfg.Location, err)
	}
	return &Ledger{
		store:     store,
		loc:       loc,
		freeLimit: cfg.FreeMonthlyLimit,
		logger:    log,
		now:       time.Now,
	}, nil
}

// WithClock replaces the time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// FreeLimit is the monthly allowance of the free tier.
func (l *Ledger) FreeLimit() int {
	return l.freeLimit
}

// NeedsReset reports whether now falls in a different calendar month or year
// than last, both read in loc.
func NeedsReset(last, now time.Time, loc *time.Location) bool {
	ly, lm, _ := last.In(loc).Date()
	ny, nm, _ := now.In(loc).Date()
	return ly != ny || lm != nm
}

// ResetIfNeeded is the pure bookkeeping step on a QuotaState. It reports
// whether the state was reset.
func ResetIfNeeded(q *model.QuotaState, now time.Time, loc *time.Location) bool {
	if !NeedsReset(q.LastResetDate, now, loc) {
		return false
	}
	q.MonthlyUsed = 0
	q.LastResetDate = now
	return true
}

// ResetIfNeeded loads the account and applies a pending monthly reset with a
// compare-and-set on lastResetDate, so racing callers reset it once.
func (l *Ledger) ResetIfNeeded(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	acct, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, repository.Translate(err, "account")
	}

	now := l.now()
	if !NeedsReset(acct.Quota.LastResetDate, now, l.loc) {
		return acct, nil
	}

	applied, err := l.store.ResetQuota(ctx, accountID, acct.Quota.LastResetDate, now)
	if err != nil {
		return nil, repository.Translate(err, "account")
	}
	if applied {
		metrics.IncrementQuotaReset(1)
		logger.WithTrace(ctx, l.logger).Info("Monthly quota reset",
			zap.String("account_id", accountID.String()),
			zap.Time("previous_reset", acct.Quota.LastResetDate),
		)
	}

	// re-read: either this call or a concurrent one reset the counter
	acct, err = l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, repository.Translate(err, "account")
	}
	return acct, nil
}

// CheckAndReserve decides whether the account may make one more metered call.
// It does not consume the allowance; RecordUsage does, after the call
// succeeds. Two concurrent checks may both pass on the last unit.
func (l *Ledger) CheckAndReserve(ctx context.Context, accountID uuid.UUID) (Decision, error) {
	acct, err := l.ResetIfNeeded(ctx, accountID)
	if err != nil {
		return Decision{}, err
	}

	d := l.decide(acct)
	outcome := "allowed"
	if !d.Allowed {
		outcome = "exceeded"
	}
	metrics.IncrementQuotaDecision(acct.Subscription.Tier, outcome)

	if !d.Allowed {
		return d, apperror.QuotaExceeded("monthly AI usage limit reached, upgrade to premium")
	}
	return d, nil
}

func (l *Ledger) decide(acct *model.Account) Decision {
	if acct.UnlimitedTier() {
		return Decision{
			Allowed:   true,
			Remaining: model.UnlimitedQuota,
			Limit:     model.UnlimitedQuota,
			Used:      acct.Quota.MonthlyUsed,
		}
	}

	limit := acct.Quota.MonthlyLimit
	if limit < 0 {
		limit = l.freeLimit
	}
	used := acct.Quota.MonthlyUsed
	if used >= limit {
		return Decision{Allowed: false, Remaining: 0, Limit: limit, Used: used}
	}
	return Decision{Allowed: true, Remaining: limit - used, Limit: limit, Used: used}
}

// RecordUsage consumes one unit.
func (l *Ledger) RecordUsage(ctx context.Context, accountID uuid.UUID) error {
	if err := l.store.IncrementQuotaUsage(ctx, accountID); err != nil {
		return repository.Translate(err, "account")
	}
	return nil
}

func (l *Ledger) Usage(ctx context.Context, accountID uuid.UUID) (Usage, error) {
	acct, err := l.ResetIfNeeded(ctx, accountID)
	if err != nil {
		return Usage{}, err
	}
	d := l.decide(acct)
	remaining := d.Remaining
	if !d.Allowed {
		remaining = 0
	}
	return Usage{
		Tier:          acct.Subscription.Tier,
		Used:          d.Used,
		Limit:         d.Limit,
		Remaining:     remaining,
		LastResetDate: acct.Quota.LastResetDate,
	}, nil
}

// SweepResets resets every account whose last reset lies before the current
// month. It uses the same month rule as ResetIfNeeded, so a sweep and a lazy
// reset never both apply in one month.
func (l *Ledger) SweepResets(ctx context.Context) (int64, error) {
	now := l.now()
	y, m, _ := now.In(l.loc).Date()
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, l.loc)

	n, err := l.store.ResetStaleQuotas(ctx, monthStart, now)
	if err != nil {
		return 0, apperror.Internal("quota sweep failed", err)
	}
	metrics.IncrementQuotaReset(int(n))
	l.logger.Info("Quota sweep finished", zap.Int64("reset", n), zap.Time("month_start", monthStart))
	return n, nil
}
