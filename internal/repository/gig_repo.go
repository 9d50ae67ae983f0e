package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gigmarket/internal/model"
)

type GigRepository struct {
	db DBTX
}

func NewGigRepository(db DBTX) *GigRepository {
	return &GigRepository{db: db}
}

const gigColumns = `
            id, client_id, title, description, category, skills,
            budget_type, budget_min, budget_max, currency, deadline,
            status, selected_bid_id, project_id, created_at, updated_at`

func scanGig(row pgx.Row) (*model.Gig, error) {
	var g model.Gig
	err := row.Scan(
		&g.ID,
		&g.ClientID,
		&g.Title,
		&g.Description,
		&g.Category,
		&g.Skills,
		&g.Budget.Type,
		&g.Budget.Min,
		&g.Budget.Max,
		&g.Budget.Currency,
		&g.Deadline,
		&g.Status,
		&g.SelectedBidID,
		&g.ProjectID,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (r *GigRepository) CreateGig(ctx context.Context, g *model.Gig) error {
	query := `
        INSERT INTO gigs (id, client_id, title, description, category, skills,
                          budget_type, budget_min, budget_max, currency, deadline, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		g.ID,
		g.ClientID,
		g.Title,
		g.Description,
		g.Category,
		nonNil(g.Skills),
		g.Budget.Type,
		g.Budget.Min,
		g.Budget.Max,
		g.Budget.Currency,
		g.Deadline,
		g.Status,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	return mapErr(err)
}

func (r *GigRepository) GetGig(ctx context.Context, id uuid.UUID) (*model.Gig, error) {
	return r.getGig(ctx, `SELECT `+gigColumns+` FROM gigs WHERE id = $1`, id)
}

func (r *GigRepository) LockGig(ctx context.Context, id uuid.UUID) (*model.Gig, error) {
	return r.getGig(ctx, `SELECT `+gigColumns+` FROM gigs WHERE id = $1 FOR UPDATE`, id)
}

func (r *GigRepository) getGig(ctx context.Context, query string, id uuid.UUID) (*model.Gig, error) {
	g, err := scanGig(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	g.BidIDs, err = r.bidIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// bidIDs lists the gig's bids in submission order.
func (r *GigRepository) bidIDs(ctx context.Context, gigID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id FROM bids WHERE gig_id = $1 ORDER BY created_at ASC, id ASC
    `, gigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *GigRepository) UpdateGig(ctx context.Context, g *model.Gig) error {
	return execOne(ctx, r.db, `
        UPDATE gigs
        SET status = $2, selected_bid_id = $3, project_id = $4, updated_at = NOW()
        WHERE id = $1
    `, g.ID, g.Status, g.SelectedBidID, g.ProjectID)
}

// DeleteGig removes the gig; its bids go with it through ON DELETE CASCADE.
func (r *GigRepository) DeleteGig(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.db, `DELETE FROM gigs WHERE id = $1`, id)
}
