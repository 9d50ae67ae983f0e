package memstore

import (
	"context"

	"github.com/google/uuid"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
)

func (q *queries) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	defer q.guard()()
	if _, ok := q.s.st.projects[m.ProjectID]; !ok {
		return repository.ErrNotFound
	}
	last := 0
	for _, existing := range q.s.st.milestones {
		if existing.ProjectID == m.ProjectID && existing.Position > last {
			last = existing.Position
		}
	}
	m.Position = last + 1
	m.CreatedAt = q.tick()
	m.UpdatedAt = m.CreatedAt
	q.s.st.milestones[m.ID] = *m
	return nil
}

func (q *queries) GetMilestone(ctx context.Context, projectID, milestoneID uuid.UUID) (*model.Milestone, error) {
	defer q.guard()()
	m, ok := q.s.st.milestones[milestoneID]
	if !ok || m.ProjectID != projectID {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (q *queries) UpdateMilestone(ctx context.Context, m *model.Milestone) error {
	defer q.guard()()
	stored, ok := q.s.st.milestones[m.ID]
	if !ok || stored.ProjectID != m.ProjectID {
		return repository.ErrNotFound
	}
	updated := *m
	updated.Position = stored.Position
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = q.s.now()
	q.s.st.milestones[m.ID] = updated
	return nil
}
