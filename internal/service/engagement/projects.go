package engagement

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gigmarket/contracts/mq"
	"gigmarket/internal/model"
	"gigmarket/internal/repository"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
	"gigmarket/pkg/rbac"
	"gigmarket/pkg/trace"
)

// AwardBid accepts bidID on gigID and opens the project for it. Everything
// happens under the gig row lock, so a gig is awarded at most once. Bids
// that did not win keep their status.
func (l *Lifecycle) AwardBid(ctx context.Context, gigID, bidID, clientID uuid.UUID) (*model.Project, error) {
	var project *model.Project
	err := l.store.WithTx(ctx, func(q repository.Queries) error {
		gig, err := q.LockGig(ctx, gigID)
		if err != nil {
			return repository.Translate(err, "gig")
		}
		if gig.ClientID != clientID {
			return apperror.Forbidden("only the gig owner can award a bid")
		}
		if gig.Status != model.GigOpen {
			return apperror.InvalidState("gig is not open")
		}

		bid, err := q.GetBid(ctx, bidID)
		if err != nil {
			return repository.Translate(err, "bid")
		}
		if bid.GigID != gigID {
			return apperror.NotFound("bid not found")
		}
		if bid.Status != model.BidPending {
			return apperror.InvalidState("bid is " + bid.Status)
		}

		now := l.now()
		p := &model.Project{
			ID:           l.newID(),
			GigID:        gig.ID,
			BidID:        bid.ID,
			ClientID:     gig.ClientID,
			FreelancerID: bid.FreelancerID,
			Title:        gig.Title,
			Description:  gig.Description,
			Budget: model.ProjectBudget{
				Type:     gig.Budget.Type,
				Amount:   bid.Amount,
				Currency: gig.Budget.Currency,
			},
			Status:     model.ProjectActive,
			Milestones: []model.Milestone{},
			StartDate:  now,
		}
		if err := q.CreateProject(ctx, p); err != nil {
			return repository.Translate(err, "project")
		}
		if err := q.UpdateBidStatus(ctx, bid.ID, model.BidAccepted); err != nil {
			return repository.Translate(err, "bid")
		}

		gig.Status = model.GigInProgress
		gig.SelectedBidID = &bid.ID
		gig.ProjectID = &p.ID
		if err := q.UpdateGig(ctx, gig); err != nil {
			return repository.Translate(err, "gig")
		}

		payload := mq.ProjectCreatedPayload{
			ProjectID:    p.ID.String(),
			GigID:        gig.ID.String(),
			BidID:        bid.ID.String(),
			ClientID:     p.ClientID.String(),
			FreelancerID: p.FreelancerID.String(),
			Title:        p.Title,
			Amount:       p.Budget.Amount.StringFixed(2),
			Currency:     p.Budget.Currency,
			CreatedAt:    now,
			TraceID:      trace.FromContext(ctx),
		}
		if err := q.EnqueueEvent(ctx, "project", p.ID, mq.RoutingKeyProjectCreated, payload); err != nil {
			return apperror.Internal("failed to enqueue project.created", err)
		}

		project = p
		return nil
	})
	if err != nil {
		metrics.IncrementOperationError("award_bid", string(apperror.KindOf(err)))
		return nil, err
	}

	metrics.IncrementEngagementEvent("bid_awarded")
	logger.WithTrace(ctx, l.logger).Info("Bid awarded",
		zap.String("gig_id", gigID.String()),
		zap.String("bid_id", bidID.String()),
		zap.String("project_id", project.ID.String()),
	)
	return project, nil
}

// GetProject returns a project to one of its parties or an admin.
func (l *Lifecycle) GetProject(ctx context.Context, projectID, actorID uuid.UUID, role string) (*model.Project, error) {
	p, err := l.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, repository.Translate(err, "project")
	}
	if p.PartyRole(actorID) == "" && role != rbac.RoleAdmin {
		return nil, apperror.Forbidden("not a party to this project")
	}
	return p, nil
}

func (l *Lifecycle) ListProjects(ctx context.Context, accountID uuid.UUID, status string) ([]model.Project, error) {
	projects, err := l.store.ListProjectsByAccount(ctx, accountID, status)
	if err != nil {
		return nil, repository.Translate(err, "project")
	}
	return projects, nil
}

type MilestoneInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Deliverables []string        `json:"deliverables"`
}

// AddMilestone appends a pending milestone to an active project.
func (l *Lifecycle) AddMilestone(ctx context.Context, projectID, clientID uuid.UUID, in MilestoneInput) (*model.Milestone, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperror.InvalidArgument("title is required")
	}
	if in.Amount.IsNegative() {
		return nil, apperror.InvalidArgument("amount must not be negative")
	}

	m := &model.Milestone{
		ID:           l.newID(),
		ProjectID:    projectID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Amount:       in.Amount.Round(2),
		DueDate:      in.DueDate,
		Status:       model.MilestonePending,
		Deliverables: in.Deliverables,
	}
	err := l.store.WithTx(ctx, func(q repository.Queries) error {
		p, err := q.LockProject(ctx, projectID)
		if err != nil {
			return repository.Translate(err, "project")
		}
		if p.ClientID != clientID {
			return apperror.Forbidden("only the client can add milestones")
		}
		if p.Status != model.ProjectActive && p.Status != model.ProjectInReview {
			return apperror.InvalidState("project is " + p.Status)
		}
		return repository.Translate(q.CreateMilestone(ctx, m), "milestone")
	})
	if err != nil {
		metrics.IncrementOperationError("add_milestone", string(apperror.KindOf(err)))
		return nil, err
	}
	metrics.IncrementEngagementEvent("milestone_added")
	return m, nil
}

// UpdateMilestone applies patch to one milestone of the project. Milestones
// may be approved in any order.
func (l *Lifecycle) UpdateMilestone(ctx context.Context, projectID, milestoneID, actorID uuid.UUID, role string, patch model.MilestonePatch) (*model.Project, error) {
	if patch.Status != nil && !model.ValidMilestoneStatus(*patch.Status) {
		return nil, apperror.InvalidArgument("unknown milestone status " + *patch.Status)
	}
	if patch.Amount != nil && patch.Amount.IsNegative() {
		return nil, apperror.InvalidArgument("amount must not be negative")
	}

	var project *model.Project
	err := l.store.WithTx(ctx, func(q repository.Queries) error {
		p, err := q.LockProject(ctx, projectID)
		if err != nil {
			return repository.Translate(err, "project")
		}
		if p.PartyRole(actorID) == "" && role != rbac.RoleAdmin {
			return apperror.Forbidden("not a party to this project")
		}
		m, err := q.GetMilestone(ctx, projectID, milestoneID)
		if err != nil {
			return repository.Translate(err, "milestone")
		}
		patch.Apply(m)
		if err := q.UpdateMilestone(ctx, m); err != nil {
			return repository.Translate(err, "milestone")
		}
		project, err = q.GetProject(ctx, projectID)
		return repository.Translate(err, "project")
	})
	if err != nil {
		metrics.IncrementOperationError("update_milestone", string(apperror.KindOf(err)))
		return nil, err
	}
	if patch.Status != nil {
		logger.WithTrace(ctx, l.logger).Info("Milestone status changed",
			zap.String("project_id", projectID.String()),
			zap.String("milestone_id", milestoneID.String()),
			zap.String("status", *patch.Status),
		)
	}
	return project, nil
}

// SubmitForReview moves an active project to in-review on the freelancer's
// request.
func (l *Lifecycle) SubmitForReview(ctx context.Context, projectID, freelancerID uuid.UUID) (*model.Project, error) {
	return l.transitionProject(ctx, transition{
		op:      "submit_for_review",
		to:      model.ProjectInReview,
		from:    []string{model.ProjectActive},
		allowed: func(p *model.Project, actor uuid.UUID) bool { return p.FreelancerID == actor },
		denied:  "only the freelancer can submit for review",
	}, projectID, freelancerID, "")
}

// CompleteProject closes the project, credits the freelancer with a finished
// job and their recorded earnings, and completes the gig.
func (l *Lifecycle) CompleteProject(ctx context.Context, projectID, clientID uuid.UUID) (*model.Project, error) {
	return l.transitionProject(ctx, transition{
		op:      "complete_project",
		to:      model.ProjectCompleted,
		from:    []string{model.ProjectActive, model.ProjectInReview},
		allowed: func(p *model.Project, actor uuid.UUID) bool { return p.ClientID == actor },
		denied:  "only the client can complete the project",
		gig:     model.GigCompleted,
		after: func(ctx context.Context, q repository.Queries, p *model.Project) error {
			return q.RecordCompletion(ctx, p.FreelancerID, p.Payment.FreelancerEarnings)
		},
	}, projectID, clientID, "")
}

// CancelProject stops an unfinished project and cancels its gig.
func (l *Lifecycle) CancelProject(ctx context.Context, projectID, clientID uuid.UUID, reason string) (*model.Project, error) {
	return l.transitionProject(ctx, transition{
		op:      "cancel_project",
		to:      model.ProjectCancelled,
		from:    []string{model.ProjectActive, model.ProjectInReview},
		allowed: func(p *model.Project, actor uuid.UUID) bool { return p.ClientID == actor },
		denied:  "only the client can cancel the project",
		gig:     model.GigCancelled,
	}, projectID, clientID, strings.TrimSpace(reason))
}

// FlagDispute lets either party escalate an unfinished project.
func (l *Lifecycle) FlagDispute(ctx context.Context, projectID, actorID uuid.UUID, reason string) (*model.Project, error) {
	return l.transitionProject(ctx, transition{
		op:      "flag_dispute",
		to:      model.ProjectDisputed,
		from:    []string{model.ProjectActive, model.ProjectInReview},
		allowed: func(p *model.Project, actor uuid.UUID) bool { return p.PartyRole(actor) != "" },
		denied:  "not a party to this project",
		gig:     model.GigDisputed,
	}, projectID, actorID, strings.TrimSpace(reason))
}

type transition struct {
	op      string
	to      string
	from    []string
	allowed func(p *model.Project, actor uuid.UUID) bool
	denied  string
	// gig status to mirror onto the originating gig, if any
	gig   string
	after func(ctx context.Context, q repository.Queries, p *model.Project) error
}

func (l *Lifecycle) transitionProject(ctx context.Context, t transition, projectID, actorID uuid.UUID, reason string) (*model.Project, error) {
	var project *model.Project
	err := l.store.WithTx(ctx, func(q repository.Queries) error {
		p, err := q.LockProject(ctx, projectID)
		if err != nil {
			return repository.Translate(err, "project")
		}
		if !t.allowed(p, actorID) {
			return apperror.Forbidden(t.denied)
		}
		if !oneOf(p.Status, t.from...) {
			return apperror.InvalidState("project is " + p.Status)
		}

		var completedAt *time.Time
		if t.to == model.ProjectCompleted {
			now := l.now()
			completedAt = &now
		}
		if err := q.UpdateProjectStatus(ctx, projectID, t.to, completedAt, reason); err != nil {
			return repository.Translate(err, "project")
		}
		if t.after != nil {
			if err := t.after(ctx, q, p); err != nil {
				return repository.Translate(err, "account")
			}
		}
		if t.gig != "" {
			gig, err := q.LockGig(ctx, p.GigID)
			if err != nil {
				return repository.Translate(err, "gig")
			}
			gig.Status = t.gig
			if err := q.UpdateGig(ctx, gig); err != nil {
				return repository.Translate(err, "gig")
			}
		}

		project, err = q.GetProject(ctx, projectID)
		return repository.Translate(err, "project")
	})
	if err != nil {
		metrics.IncrementOperationError(t.op, string(apperror.KindOf(err)))
		return nil, err
	}

	metrics.IncrementEngagementEvent(t.op)
	logger.WithTrace(ctx, l.logger).Info("Project status changed",
		zap.String("project_id", projectID.String()),
		zap.String("status", t.to),
		zap.String("actor_id", actorID.String()),
	)
	return project, nil
}
