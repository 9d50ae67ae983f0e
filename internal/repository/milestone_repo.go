package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gigmarket/internal/model"
)

type MilestoneRepository struct {
	db DBTX
}

func NewMilestoneRepository(db DBTX) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

const milestoneColumns = `id, project_id, title, description, amount, due_date, status, deliverables, position, created_at, updated_at`

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var m model.Milestone
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Title,
		&m.Description,
		&m.Amount,
		&m.DueDate,
		&m.Status,
		&m.Deliverables,
		&m.Position,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

// CreateMilestone appends the milestone after the project's last one.
func (r *MilestoneRepository) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	query := `
        INSERT INTO milestones (id, project_id, title, description, amount, due_date, status, deliverables, position)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
                (SELECT COALESCE(MAX(position), 0) + 1 FROM milestones WHERE project_id = $2))
        RETURNING position, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		m.ID,
		m.ProjectID,
		m.Title,
		m.Description,
		m.Amount,
		m.DueDate,
		m.Status,
		nonNil(m.Deliverables),
	).Scan(&m.Position, &m.CreatedAt, &m.UpdatedAt)
	return mapErr(err)
}

func (r *MilestoneRepository) GetMilestone(ctx context.Context, projectID, milestoneID uuid.UUID) (*model.Milestone, error) {
	return scanMilestone(r.db.QueryRow(ctx, `
        SELECT `+milestoneColumns+` FROM milestones WHERE project_id = $1 AND id = $2
    `, projectID, milestoneID))
}

func (r *MilestoneRepository) UpdateMilestone(ctx context.Context, m *model.Milestone) error {
	return execOne(ctx, r.db, `
        UPDATE milestones
        SET title = $3, description = $4, amount = $5, due_date = $6, status = $7, deliverables = $8,
            updated_at = NOW()
        WHERE project_id = $1 AND id = $2
    `, m.ProjectID, m.ID, m.Title, m.Description, m.Amount, m.DueDate, m.Status, nonNil(m.Deliverables))
}

func listMilestones(ctx context.Context, db DBTX, projectID uuid.UUID) ([]model.Milestone, error) {
	rows, err := db.Query(ctx, `
        SELECT `+milestoneColumns+`
        FROM milestones
        WHERE project_id = $1
        ORDER BY position ASC
    `, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	milestones := []model.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, *m)
	}
	return milestones, rows.Err()
}
