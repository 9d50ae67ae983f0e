package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gigmarket/internal/model"
)

type BidRepository struct {
	db DBTX
}

func NewBidRepository(db DBTX) *BidRepository {
	return &BidRepository{db: db}
}

const bidColumns = `id, gig_id, freelancer_id, amount, delivery_days, proposal, status, created_at, updated_at`

func scanBid(row pgx.Row) (*model.Bid, error) {
	var b model.Bid
	err := row.Scan(
		&b.ID,
		&b.GigID,
		&b.FreelancerID,
		&b.Amount,
		&b.DeliveryDays,
		&b.Proposal,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

// CreateBid inserts the bid; UNIQUE (gig_id, freelancer_id) backs the
// duplicate check made under the gig row lock.
func (r *BidRepository) CreateBid(ctx context.Context, b *model.Bid) error {
	query := `
        INSERT INTO bids (id, gig_id, freelancer_id, amount, delivery_days, proposal, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		b.ID,
		b.GigID,
		b.FreelancerID,
		b.Amount,
		b.DeliveryDays,
		b.Proposal,
		b.Status,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	return mapErr(err)
}

func (r *BidRepository) GetBid(ctx context.Context, id uuid.UUID) (*model.Bid, error) {
	return scanBid(r.db.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
}

func (r *BidRepository) GetBidByGigAndFreelancer(ctx context.Context, gigID, freelancerID uuid.UUID) (*model.Bid, error) {
	return scanBid(r.db.QueryRow(ctx, `
        SELECT `+bidColumns+` FROM bids WHERE gig_id = $1 AND freelancer_id = $2
    `, gigID, freelancerID))
}

func (r *BidRepository) ListBidsByGig(ctx context.Context, gigID uuid.UUID) ([]model.Bid, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+bidColumns+`
        FROM bids
        WHERE gig_id = $1
        ORDER BY created_at DESC, id DESC
    `, gigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []model.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}

func (r *BidRepository) UpdateBidStatus(ctx context.Context, id uuid.UUID, status string) error {
	return execOne(ctx, r.db, `
        UPDATE bids SET status = $2, updated_at = NOW() WHERE id = $1
    `, id, status)
}
