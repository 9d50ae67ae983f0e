package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
)

func (q *queries) CreateBid(ctx context.Context, b *model.Bid) error {
	defer q.guard()()
	if _, ok := q.s.st.gigs[b.GigID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range q.s.st.bids {
		if existing.GigID == b.GigID && existing.FreelancerID == b.FreelancerID {
			return repository.ErrDuplicate
		}
	}
	b.CreatedAt = q.tick()
	b.UpdatedAt = b.CreatedAt
	q.s.st.bids[b.ID] = *b
	return nil
}

func (q *queries) GetBid(ctx context.Context, id uuid.UUID) (*model.Bid, error) {
	defer q.guard()()
	b, ok := q.s.st.bids[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (q *queries) GetBidByGigAndFreelancer(ctx context.Context, gigID, freelancerID uuid.UUID) (*model.Bid, error) {
	defer q.guard()()
	for _, b := range q.s.st.bids {
		if b.GigID == gigID && b.FreelancerID == freelancerID {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (q *queries) ListBidsByGig(ctx context.Context, gigID uuid.UUID) ([]model.Bid, error) {
	defer q.guard()()
	return q.bidsOf(gigID), nil
}

// bidsOf returns the gig's bids newest first. Callers hold the guard.
func (q *queries) bidsOf(gigID uuid.UUID) []model.Bid {
	bids := []model.Bid{}
	for _, b := range q.s.st.bids {
		if b.GigID == gigID {
			bids = append(bids, b)
		}
	}
	sortByCreatedDesc(bids, func(b model.Bid) time.Time { return b.CreatedAt })
	return bids
}

func (q *queries) UpdateBidStatus(ctx context.Context, id uuid.UUID, status string) error {
	defer q.guard()()
	b, ok := q.s.st.bids[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = q.s.now()
	q.s.st.bids[id] = b
	return nil
}
