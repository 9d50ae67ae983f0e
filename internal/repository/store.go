// Package repository defines the persistence contract of the marketplace core
// and its PostgreSQL implementation.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gigmarket/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type AccountQueries interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountBySubscription(ctx context.Context, subscriptionID string) (*model.Account, error)
	// LockAccount reads the account and holds a row lock until the transaction ends.
	LockAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)

	// ResetQuota zeroes usage only while last_reset_date still equals
	// observed. It reports whether this call applied the reset.
	ResetQuota(ctx context.Context, id uuid.UUID, observed, now time.Time) (bool, error)
	// ResetStaleQuotas resets every account last reset before monthStart.
	ResetStaleQuotas(ctx context.Context, monthStart, now time.Time) (int64, error)
	IncrementQuotaUsage(ctx context.Context, id uuid.UUID) error

	SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	// SetSubscription replaces the subscription block and the quota limit.
	SetSubscription(ctx context.Context, id uuid.UUID, sub model.Subscription, monthlyLimit int) error
	// MarkCancelAtPeriodEnd flags the account only while it still carries
	// subscriptionID. Tier and limit are left alone. It reports whether a row
	// matched.
	MarkCancelAtPeriodEnd(ctx context.Context, id uuid.UUID, subscriptionID string, periodEnd *time.Time) (bool, error)

	CreditBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	RecordCompletion(ctx context.Context, id uuid.UUID, earnings decimal.Decimal) error
	// CreditEarnings adds to total_earnings without counting a completion.
	CreditEarnings(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	// ApplyRating folds rating into the running mean using the pre-update count.
	ApplyRating(ctx context.Context, id uuid.UUID, rating int) error
}

type GigQueries interface {
	CreateGig(ctx context.Context, g *model.Gig) error
	GetGig(ctx context.Context, id uuid.UUID) (*model.Gig, error)
	// LockGig reads the gig and holds a row lock until the transaction ends.
	LockGig(ctx context.Context, id uuid.UUID) (*model.Gig, error)
	// UpdateGig persists status, selected bid and project link.
	UpdateGig(ctx context.Context, g *model.Gig) error
	DeleteGig(ctx context.Context, id uuid.UUID) error
}

type BidQueries interface {
	// CreateBid returns ErrDuplicate when the freelancer already bid on the gig.
	CreateBid(ctx context.Context, b *model.Bid) error
	GetBid(ctx context.Context, id uuid.UUID) (*model.Bid, error)
	GetBidByGigAndFreelancer(ctx context.Context, gigID, freelancerID uuid.UUID) (*model.Bid, error)
	// ListBidsByGig returns the gig's bids newest first.
	ListBidsByGig(ctx context.Context, gigID uuid.UUID) ([]model.Bid, error)
	UpdateBidStatus(ctx context.Context, id uuid.UUID, status string) error
}

type ProjectQueries interface {
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	LockProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	// ListProjectsByAccount returns projects where the account is either party,
	// newest first. An empty status matches all.
	ListProjectsByAccount(ctx context.Context, accountID uuid.UUID, status string) ([]model.Project, error)
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status string, completedAt *time.Time, reason string) error
	// SetReview writes the slot only if it is empty and reports whether it did.
	SetReview(ctx context.Context, projectID uuid.UUID, slot string, r model.Review) (bool, error)

	AddEscrow(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal) error
	// RecordCapture stores a capture reference once; false means it was seen before.
	RecordCapture(ctx context.Context, projectID uuid.UUID, externalRef string, amount decimal.Decimal) (bool, error)
	AddPayment(ctx context.Context, projectID uuid.UUID, paid, fee, earnings decimal.Decimal, externalRef string) error
}

type MilestoneQueries interface {
	CreateMilestone(ctx context.Context, m *model.Milestone) error
	GetMilestone(ctx context.Context, projectID, milestoneID uuid.UUID) (*model.Milestone, error)
	UpdateMilestone(ctx context.Context, m *model.Milestone) error
}

type SubscriptionQueries interface {
	// LockSubscription serialises activation and cancellation of one
	// subscription until the transaction ends.
	LockSubscription(ctx context.Context, subscriptionID string) error
	MarkSubscriptionCancelled(ctx context.Context, subscriptionID string, at time.Time) error
	IsSubscriptionCancelled(ctx context.Context, subscriptionID string) (bool, error)
}

type OutboxQueries interface {
	// EnqueueEvent adds a bus message that is published only if the
	// surrounding transaction commits.
	EnqueueEvent(ctx context.Context, aggregateType string, aggregateID uuid.UUID, routingKey string, payload any) error
}

// Queries is everything a service can do against the store.
type Queries interface {
	AccountQueries
	GigQueries
	BidQueries
	ProjectQueries
	MilestoneQueries
	SubscriptionQueries
	OutboxQueries
}

// Store runs queries directly or inside a transaction. fn's error rolls the
// transaction back and is returned unchanged.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
