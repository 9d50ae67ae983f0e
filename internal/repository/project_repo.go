package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gigmarket/internal/model"
)

type ProjectRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewProjectRepository(db DBTX, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

const projectColumns = `
            id, gig_id, bid_id, client_id, freelancer_id, title, description,
            budget_type, budget_amount, currency, status,
            escrow_amount, paid_amount, platform_fee, freelancer_earnings, external_ref,
            client_review_rating, client_review_comment, client_review_at,
            freelancer_review_rating, freelancer_review_comment, freelancer_review_at,
            cancellation_reason, start_date, completed_at, created_at, updated_at`

// reviewColumns maps a review slot to its column triple.
var reviewColumns = map[string][3]string{
	model.ReviewerClient:     {"client_review_rating", "client_review_comment", "client_review_at"},
	model.ReviewerFreelancer: {"freelancer_review_rating", "freelancer_review_comment", "freelancer_review_at"},
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	var clientRating, freelancerRating *int
	var clientComment, freelancerComment *string
	var clientAt, freelancerAt *time.Time
	err := row.Scan(
		&p.ID,
		&p.GigID,
		&p.BidID,
		&p.ClientID,
		&p.FreelancerID,
		&p.Title,
		&p.Description,
		&p.Budget.Type,
		&p.Budget.Amount,
		&p.Budget.Currency,
		&p.Status,
		&p.Payment.EscrowAmount,
		&p.Payment.PaidAmount,
		&p.Payment.PlatformFee,
		&p.Payment.FreelancerEarnings,
		&p.Payment.ExternalRef,
		&clientRating,
		&clientComment,
		&clientAt,
		&freelancerRating,
		&freelancerComment,
		&freelancerAt,
		&p.CancellationReason,
		&p.StartDate,
		&p.CompletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	p.ClientReview = buildReview(clientRating, clientComment, clientAt)
	p.FreelancerReview = buildReview(freelancerRating, freelancerComment, freelancerAt)
	return &p, nil
}

func buildReview(rating *int, comment *string, at *time.Time) *model.Review {
	if rating == nil {
		return nil
	}
	r := &model.Review{Rating: *rating}
	if comment != nil {
		r.Comment = *comment
	}
	if at != nil {
		r.CreatedAt = *at
	}
	return r
}

func (r *ProjectRepository) CreateProject(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.String("gig_id", p.GigID.String()),
		zap.String("freelancer_id", p.FreelancerID.String()),
	)

	query := `
        INSERT INTO projects (id, gig_id, bid_id, client_id, freelancer_id, title, description,
                              budget_type, budget_amount, currency, status, start_date)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		p.ID,
		p.GigID,
		p.BidID,
		p.ClientID,
		p.FreelancerID,
		p.Title,
		p.Description,
		p.Budget.Type,
		p.Budget.Amount,
		p.Budget.Currency,
		p.Status,
		p.StartDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err))
		return mapErr(err)
	}
	return nil
}

// GetProject loads the project together with its milestones.
func (r *ProjectRepository) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	return r.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

func (r *ProjectRepository) LockProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	return r.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id)
}

func (r *ProjectRepository) getProject(ctx context.Context, query string, id uuid.UUID) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	p.Milestones, err = listMilestones(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjectsByAccount returns projects without their milestones.
func (r *ProjectRepository) ListProjectsByAccount(ctx context.Context, accountID uuid.UUID, status string) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+projectColumns+`
        FROM projects
        WHERE (client_id = $1 OR freelancer_id = $1)
        AND ($2 = '' OR status = $2)
        ORDER BY created_at DESC
    `, accountID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status string, completedAt *time.Time, reason string) error {
	return execOne(ctx, r.db, `
        UPDATE projects
        SET status = $2,
            completed_at = COALESCE($3, completed_at),
            cancellation_reason = CASE WHEN $4 = '' THEN cancellation_reason ELSE $4 END,
            updated_at = NOW()
        WHERE id = $1
    `, id, status, completedAt, reason)
}

// SetReview fills an empty review slot. The IS NULL guard makes the slot
// write-once even without a row lock.
func (r *ProjectRepository) SetReview(ctx context.Context, projectID uuid.UUID, slot string, rv model.Review) (bool, error) {
	cols, ok := reviewColumns[slot]
	if !ok {
		return false, fmt.Errorf("unknown review slot %q", slot)
	}
	query := fmt.Sprintf(`
        UPDATE projects
        SET %[1]s = $2, %[2]s = $3, %[3]s = $4, updated_at = NOW()
        WHERE id = $1 AND %[1]s IS NULL
    `, cols[0], cols[1], cols[2])

	tag, err := r.db.Exec(ctx, query, projectID, rv.Rating, rv.Comment, rv.CreatedAt)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProjectRepository) AddEscrow(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal) error {
	return execOne(ctx, r.db, `
        UPDATE projects SET escrow_amount = escrow_amount + $2, updated_at = NOW() WHERE id = $1
    `, projectID, amount)
}

func (r *ProjectRepository) RecordCapture(ctx context.Context, projectID uuid.UUID, externalRef string, amount decimal.Decimal) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        INSERT INTO payment_captures (external_ref, project_id, amount)
        VALUES ($1, $2, $3)
        ON CONFLICT (external_ref) DO NOTHING
    `, externalRef, projectID, amount)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProjectRepository) AddPayment(ctx context.Context, projectID uuid.UUID, paid, fee, earnings decimal.Decimal, externalRef string) error {
	return execOne(ctx, r.db, `
        UPDATE projects
        SET paid_amount = paid_amount + $2,
            platform_fee = platform_fee + $3,
            freelancer_earnings = freelancer_earnings + $4,
            external_ref = $5,
            updated_at = NOW()
        WHERE id = $1
    `, projectID, paid, fee, earnings, externalRef)
}
