package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
)

func (q *queries) CreateProject(ctx context.Context, p *model.Project) error {
	defer q.guard()()
	if _, ok := q.s.st.projects[p.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range q.s.st.projects {
		if existing.GigID == p.GigID {
			return repository.ErrDuplicate
		}
	}
	p.CreatedAt = q.tick()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.Milestones = nil
	q.s.st.projects[p.ID] = stored
	return nil
}

func (q *queries) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	defer q.guard()()
	return q.loadProject(id)
}

func (q *queries) LockProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	defer q.guard()()
	return q.loadProject(id)
}

func (q *queries) loadProject(id uuid.UUID) (*model.Project, error) {
	p, ok := q.s.st.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ms := []model.Milestone{}
	for _, m := range q.s.st.milestones {
		if m.ProjectID == id {
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].Position < ms[j].Position })
	p.Milestones = ms
	p.ClientReview = copyReview(p.ClientReview)
	p.FreelancerReview = copyReview(p.FreelancerReview)
	return &p, nil
}

func copyReview(r *model.Review) *model.Review {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (q *queries) ListProjectsByAccount(ctx context.Context, accountID uuid.UUID, status string) ([]model.Project, error) {
	defer q.guard()()
	projects := []model.Project{}
	for _, p := range q.s.st.projects {
		if p.ClientID != accountID && p.FreelancerID != accountID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		projects = append(projects, p)
	}
	sortByCreatedDesc(projects, func(p model.Project) time.Time { return p.CreatedAt })
	return projects, nil
}

func (q *queries) updateProject(id uuid.UUID, fn func(p *model.Project)) error {
	p, ok := q.s.st.projects[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&p)
	p.UpdatedAt = q.s.now()
	q.s.st.projects[id] = p
	return nil
}

func (q *queries) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status string, completedAt *time.Time, reason string) error {
	defer q.guard()()
	return q.updateProject(id, func(p *model.Project) {
		p.Status = status
		if completedAt != nil {
			t := *completedAt
			p.CompletedAt = &t
		}
		if reason != "" {
			p.CancellationReason = reason
		}
	})
}

func (q *queries) SetReview(ctx context.Context, projectID uuid.UUID, slot string, r model.Review) (bool, error) {
	defer q.guard()()
	p, ok := q.s.st.projects[projectID]
	if !ok {
		return false, repository.ErrNotFound
	}
	var target **model.Review
	switch slot {
	case model.ReviewerClient:
		target = &p.ClientReview
	case model.ReviewerFreelancer:
		target = &p.FreelancerReview
	default:
		return false, fmt.Errorf("unknown review slot %q", slot)
	}
	if *target != nil {
		return false, nil
	}
	*target = &r
	p.UpdatedAt = q.s.now()
	q.s.st.projects[projectID] = p
	return true, nil
}

func (q *queries) AddEscrow(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal) error {
	defer q.guard()()
	return q.updateProject(projectID, func(p *model.Project) {
		p.Payment.EscrowAmount = p.Payment.EscrowAmount.Add(amount)
	})
}

func (q *queries) RecordCapture(ctx context.Context, projectID uuid.UUID, externalRef string, amount decimal.Decimal) (bool, error) {
	defer q.guard()()
	if _, ok := q.s.st.captures[externalRef]; ok {
		return false, nil
	}
	q.s.st.captures[externalRef] = capture{projectID: projectID, amount: amount}
	return true, nil
}

func (q *queries) AddPayment(ctx context.Context, projectID uuid.UUID, paid, fee, earnings decimal.Decimal, externalRef string) error {
	defer q.guard()()
	return q.updateProject(projectID, func(p *model.Project) {
		p.Payment.PaidAmount = p.Payment.PaidAmount.Add(paid)
		p.Payment.PlatformFee = p.Payment.PlatformFee.Add(fee)
		p.Payment.FreelancerEarnings = p.Payment.FreelancerEarnings.Add(earnings)
		p.Payment.ExternalRef = externalRef
	})
}
