package engagement

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
	"gigmarket/pkg/rbac"
)

type GigInput struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Skills      []string     `json:"skills"`
	Budget      model.Budget `json:"budget"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	// Publish opens the gig for bids immediately instead of saving a draft.
	Publish bool `json:"publish"`
}

func (in *GigInput) normalize(defaultCurrency string) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || len(in.Title) > 100 {
		return apperror.InvalidArgument("title is required and must be at most 100 characters")
	}
	if in.Description == "" {
		return apperror.InvalidArgument("description is required")
	}
	if !model.ValidCategory(in.Category) {
		return apperror.InvalidArgument("unknown category " + in.Category)
	}
	if in.Budget.Type == "" {
		in.Budget.Type = model.BudgetFixed
	}
	if in.Budget.Type != model.BudgetFixed && in.Budget.Type != model.BudgetHourly {
		return apperror.InvalidArgument("budget type must be fixed or hourly")
	}
	if in.Budget.Min.IsNegative() || in.Budget.Max.LessThan(in.Budget.Min) {
		return apperror.InvalidArgument("budget range is invalid")
	}
	if in.Budget.Currency == "" {
		in.Budget.Currency = defaultCurrency
	}
	in.Budget.Min = in.Budget.Min.Round(2)
	in.Budget.Max = in.Budget.Max.Round(2)
	return nil
}

// CreateGig stores a new gig owned by clientID, as a draft or already open.
func (l *Lifecycle) CreateGig(ctx context.Context, clientID uuid.UUID, in GigInput) (*model.Gig, error) {
	if err := in.normalize(l.currency); err != nil {
		return nil, err
	}

	status := model.GigDraft
	if in.Publish {
		status = model.GigOpen
	}
	gig := &model.Gig{
		ID:          l.newID(),
		ClientID:    clientID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Skills:      in.Skills,
		Budget:      in.Budget,
		Deadline:    in.Deadline,
		Status:      status,
		BidIDs:      []uuid.UUID{},
	}
	if err := l.store.CreateGig(ctx, gig); err != nil {
		return nil, repository.Translate(err, "gig")
	}

	metrics.IncrementEngagementEvent("gig_created")
	logger.WithTrace(ctx, l.logger).Info("Gig created",
		zap.String("gig_id", gig.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("status", status),
	)
	return gig, nil
}

func (l *Lifecycle) GetGig(ctx context.Context, gigID uuid.UUID) (*model.Gig, error) {
	gig, err := l.store.GetGig(ctx, gigID)
	if err != nil {
		return nil, repository.Translate(err, "gig")
	}
	return gig, nil
}

// PublishGig opens a draft for bidding.
func (l *Lifecycle) PublishGig(ctx context.Context, gigID, clientID uuid.UUID) (*model.Gig, error) {
	return l.transitionGig(ctx, "publish_gig", gigID, clientID, "", model.GigOpen, model.GigDraft)
}

// CancelGig withdraws a gig that has not been awarded yet.
func (l *Lifecycle) CancelGig(ctx context.Context, gigID, actorID uuid.UUID, role string) (*model.Gig, error) {
	return l.transitionGig(ctx, "cancel_gig", gigID, actorID, role, model.GigCancelled, model.GigDraft, model.GigOpen)
}

func (l *Lifecycle) transitionGig(ctx context.Context, op string, gigID, actorID uuid.UUID, role, to string, from ...string) (*model.Gig, error) {
	var gig *model.Gig
	err := l.store.WithTx(ctx, func(q repository.Queries) error {
		g, err := q.LockGig(ctx, gigID)
		if err != nil {
			return repository.Translate(err, "gig")
		}
		if g.ClientID != actorID && role != rbac.RoleAdmin {
			return apperror.Forbidden("only the gig owner can change it")
		}
		if !oneOf(g.Status, from...) {
			return apperror.InvalidState("gig is " + g.Status)
		}
		g.Status = to
		if err := q.UpdateGig(ctx, g); err != nil {
			return repository.Translate(err, "gig")
		}
		gig = g
		return nil
	})
	if err != nil {
		metrics.IncrementOperationError(op, string(apperror.KindOf(err)))
		return nil, err
	}
	logger.WithTrace(ctx, l.logger).Info("Gig status changed",
		zap.String("gig_id", gigID.String()),
		zap.String("status", to),
	)
	return gig, nil
}

// DeleteGig removes a gig and its bids. A gig that spawned a project is kept.
func (l *Lifecycle) DeleteGig(ctx context.Context, gigID, actorID uuid.UUID, role string) error {
	err := l.store.WithTx(ctx, func(q repository.Queries) error {
		g, err := q.LockGig(ctx, gigID)
		if err != nil {
			return repository.Translate(err, "gig")
		}
		if g.ClientID != actorID && role != rbac.RoleAdmin {
			return apperror.Forbidden("only the gig owner can delete it")
		}
		if g.ProjectID != nil {
			return apperror.InvalidState("gig is referenced by a project")
		}
		return repository.Translate(q.DeleteGig(ctx, gigID), "gig")
	})
	if err != nil {
		metrics.IncrementOperationError("delete_gig", string(apperror.KindOf(err)))
		return err
	}
	logger.WithTrace(ctx, l.logger).Info("Gig deleted", zap.String("gig_id", gigID.String()))
	return nil
}

func oneOf(s string, set ...string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
