package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Milestone statuses
const (
	MilestonePending    = "pending"
	MilestoneInProgress = "in-progress"
	MilestoneSubmitted  = "submitted"
	MilestoneApproved   = "approved"
	MilestoneRejected   = "rejected"
)

func ValidMilestoneStatus(s string) bool {
	switch s {
	case MilestonePending, MilestoneInProgress, MilestoneSubmitted, MilestoneApproved, MilestoneRejected:
		return true
	}
	return false
}

type Milestone struct {
	ID           uuid.UUID       `json:"id"`
	ProjectID    uuid.UUID       `json:"project_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Status       string          `json:"status"`
	Deliverables []string        `json:"deliverables"`
	Position     int             `json:"position"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MilestonePatch is a partial update; nil fields are left unchanged.
type MilestonePatch struct {
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
	Status       *string          `json:"status,omitempty"`
	Deliverables []string         `json:"deliverables,omitempty"`
}

// Apply copies the set fields of p onto m.
func (p MilestonePatch) Apply(m *Milestone) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Amount != nil {
		m.Amount = *p.Amount
	}
	if p.DueDate != nil {
		d := *p.DueDate
		m.DueDate = &d
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Deliverables != nil {
		m.Deliverables = append([]string(nil), p.Deliverables...)
	}
}
