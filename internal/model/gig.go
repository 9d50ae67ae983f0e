package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gig statuses
const (
	GigDraft      = "draft"
	GigOpen       = "open"
	GigInProgress = "in-progress"
	GigCompleted  = "completed"
	GigCancelled  = "cancelled"
	GigDisputed   = "disputed"
)

// Budget types
const (
	BudgetFixed  = "fixed"
	BudgetHourly = "hourly"
)

var Categories = []string{
	"design", "writing", "music", "video", "photography", "marketing", "development", "other",
}

func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type Budget struct {
	Type     string          `json:"type"`
	Min      decimal.Decimal `json:"min"`
	Max      decimal.Decimal `json:"max"`
	Currency string          `json:"currency"`
}

// Gig is a client-posted work request. BidIDs is ordered oldest first.
type Gig struct {
	ID            uuid.UUID   `json:"id"`
	ClientID      uuid.UUID   `json:"client_id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	Skills        []string    `json:"skills"`
	Budget        Budget      `json:"budget"`
	Deadline      *time.Time  `json:"deadline,omitempty"`
	Status        string      `json:"status"`
	BidIDs        []uuid.UUID `json:"bid_ids"`
	SelectedBidID *uuid.UUID  `json:"selected_bid_id,omitempty"`
	ProjectID     *uuid.UUID  `json:"project_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
