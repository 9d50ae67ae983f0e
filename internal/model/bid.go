package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid statuses
const (
	BidPending   = "pending"
	BidAccepted  = "accepted"
	BidRejected  = "rejected"
	BidWithdrawn = "withdrawn"
)

type Bid struct {
	ID           uuid.UUID       `json:"id"`
	GigID        uuid.UUID       `json:"gig_id"`
	FreelancerID uuid.UUID       `json:"freelancer_id"`
	Amount       decimal.Decimal `json:"amount"`
	DeliveryDays int             `json:"delivery_days"`
	Proposal     string          `json:"proposal"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
