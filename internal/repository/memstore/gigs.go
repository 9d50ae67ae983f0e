package memstore

import (
	"context"

	"github.com/google/uuid"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
)

func (q *queries) CreateGig(ctx context.Context, g *model.Gig) error {
	defer q.guard()()
	if _, ok := q.s.st.gigs[g.ID]; ok {
		return repository.ErrDuplicate
	}
	g.CreatedAt = q.tick()
	g.UpdatedAt = g.CreatedAt
	g.BidIDs = nil
	q.s.st.gigs[g.ID] = *g
	return nil
}

func (q *queries) GetGig(ctx context.Context, id uuid.UUID) (*model.Gig, error) {
	defer q.guard()()
	return q.loadGig(id)
}

func (q *queries) LockGig(ctx context.Context, id uuid.UUID) (*model.Gig, error) {
	defer q.guard()()
	return q.loadGig(id)
}

func (q *queries) loadGig(id uuid.UUID) (*model.Gig, error) {
	g, ok := q.s.st.gigs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	bids := q.bidsOf(id)
	// oldest first
	ids := make([]uuid.UUID, 0, len(bids))
	for i := len(bids) - 1; i >= 0; i-- {
		ids = append(ids, bids[i].ID)
	}
	g.BidIDs = ids
	return &g, nil
}

func (q *queries) UpdateGig(ctx context.Context, g *model.Gig) error {
	defer q.guard()()
	stored, ok := q.s.st.gigs[g.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = g.Status
	stored.SelectedBidID = g.SelectedBidID
	stored.ProjectID = g.ProjectID
	stored.UpdatedAt = q.s.now()
	q.s.st.gigs[g.ID] = stored
	return nil
}

func (q *queries) DeleteGig(ctx context.Context, id uuid.UUID) error {
	defer q.guard()()
	if _, ok := q.s.st.gigs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(q.s.st.gigs, id)
	for bidID, b := range q.s.st.bids {
		if b.GigID == id {
			delete(q.s.st.bids, bidID)
		}
	}
	return nil
}
