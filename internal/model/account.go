package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Subscription tiers
const (
	TierFree       = "free"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// UnlimitedQuota marks a monthly limit or remaining allowance with no bound.
const UnlimitedQuota = -1

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// QuotaState is the AI-assist allowance embedded in an Account.
type QuotaState struct {
	MonthlyLimit  int       `json:"monthly_limit"`
	MonthlyUsed   int       `json:"monthly_used"`
	LastResetDate time.Time `json:"last_reset_date"`
}

type Subscription struct {
	Tier              string     `json:"tier"`
	CustomerID        string     `json:"customer_id,omitempty"`
	SubscriptionID    string     `json:"subscription_id,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

type Profile struct {
	DisplayName string `json:"display_name"`
	Title       string `json:"title,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Location    string `json:"location,omitempty"`
}

type Account struct {
	ID                uuid.UUID       `json:"id"`
	Email             string          `json:"email"`
	PasswordHash      string          `json:"-"`
	Role              string          `json:"role"`
	Profile           Profile         `json:"profile"`
	Skills            []string        `json:"skills"`
	Subscription      Subscription    `json:"subscription"`
	Rating            Rating          `json:"rating"`
	Balance           decimal.Decimal `json:"balance"`
	TotalEarnings     decimal.Decimal `json:"total_earnings"`
	CompletedProjects int             `json:"completed_projects"`
	Quota             QuotaState      `json:"quota"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// UnlimitedTier reports whether the account's tier bypasses the AI-assist quota.
func (a *Account) UnlimitedTier() bool {
	return a.Subscription.Tier == TierPremium || a.Subscription.Tier == TierEnterprise
}

// PublicProfile is what other users may see of an account: no contact,
// billing or balance fields.
type PublicProfile struct {
	ID                uuid.UUID `json:"id"`
	Role              string    `json:"role"`
	Profile           Profile   `json:"profile"`
	Skills            []string  `json:"skills"`
	Tier              string    `json:"tier"`
	Rating            Rating    `json:"rating"`
	CompletedProjects int       `json:"completed_projects"`
	MemberSince       time.Time `json:"member_since"`
}

func (a *Account) Public() PublicProfile {
	return PublicProfile{
		ID:                a.ID,
		Role:              a.Role,
		Profile:           a.Profile,
		Skills:            a.Skills,
		Tier:              a.Subscription.Tier,
		Rating:            a.Rating,
		CompletedProjects: a.CompletedProjects,
		MemberSince:       a.CreatedAt,
	}
}
