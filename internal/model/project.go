package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project statuses
const (
	ProjectActive    = "active"
	ProjectInReview  = "in-review"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
	ProjectDisputed  = "disputed"
)

// Review slots, named after the party writing the review.
const (
	ReviewerClient     = "client"
	ReviewerFreelancer = "freelancer"
)

type ProjectBudget struct {
	Type     string          `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Payment is embedded in a Project. Once PaidAmount > 0,
// PlatformFee + FreelancerEarnings == PaidAmount.
type Payment struct {
	EscrowAmount       decimal.Decimal `json:"escrow_amount"`
	PaidAmount         decimal.Decimal `json:"paid_amount"`
	PlatformFee        decimal.Decimal `json:"platform_fee"`
	FreelancerEarnings decimal.Decimal `json:"freelancer_earnings"`
	ExternalRef        string          `json:"external_ref,omitempty"`
}

type Review struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type Project struct {
	ID           uuid.UUID     `json:"id"`
	GigID        uuid.UUID     `json:"gig_id"`
	BidID        uuid.UUID     `json:"bid_id"`
	ClientID     uuid.UUID     `json:"client_id"`
	FreelancerID uuid.UUID     `json:"freelancer_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Budget       ProjectBudget `json:"budget"`
	Status       string        `json:"status"`
	Milestones   []Milestone   `json:"milestones"`
	Payment      Payment       `json:"payment"`
	// ClientReview is written by the client about the freelancer.
	ClientReview *Review `json:"client_review,omitempty"`
	// FreelancerReview is written by the freelancer about the client.
	FreelancerReview   *Review    `json:"freelancer_review,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	StartDate          time.Time  `json:"start_date"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// PartyRole returns ReviewerClient or ReviewerFreelancer for a participant
// and "" for anyone else.
func (p *Project) PartyRole(accountID uuid.UUID) string {
	switch accountID {
	case p.ClientID:
		return ReviewerClient
	case p.FreelancerID:
		return ReviewerFreelancer
	default:
		return ""
	}
}

// Counterparty returns the other participant.
func (p *Project) Counterparty(accountID uuid.UUID) uuid.UUID {
	if accountID == p.ClientID {
		return p.FreelancerID
	}
	return p.ClientID
}
