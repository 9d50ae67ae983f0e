// Package reputation applies project reviews to the counter-party's running
// rating.
package reputation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Ledger struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(store repository.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: log, now: time.Now}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Profile returns the account's public reputation: rating and finished jobs.
func (l *Ledger) Profile(ctx context.Context, accountID uuid.UUID) (*model.PublicProfile, error) {
	a, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, repository.Translate(err, "account")
	}
	p := a.Public()
	return &p, nil
}

// NextAverage is the incremental mean after one more rating, computed from
// the pre-update count.
func NextAverage(average float64, count int, rating int) (float64, int) {
	return (average*float64(count) + float64(rating)) / float64(count+1), count + 1
}

// SubmitReview stores the reviewer's review in their role's slot and folds
// the rating into the other party's average. Each slot is written once; a
// second review from the same side fails with Conflict and changes nothing.
func (l *Ledger) SubmitReview(ctx context.Context, projectID, reviewerID uuid.UUID, rating int, comment string) (*model.Project, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, apperror.InvalidArgument("rating must be between 1 and 5")
	}

	var project *model.Project
	err := l.store.WithTx(ctx, func(q repository.Queries) error {
		p, err := q.LockProject(ctx, projectID)
		if err != nil {
			return repository.Translate(err, "project")
		}

		slot := p.PartyRole(reviewerID)
		if slot == "" {
			return apperror.Forbidden("only the project's client or freelancer can review it")
		}

		written, err := q.SetReview(ctx, projectID, slot, model.Review{
			Rating:    rating,
			Comment:   comment,
			CreatedAt: l.now(),
		})
		if err != nil {
			return repository.Translate(err, "project")
		}
		if !written {
			return apperror.Conflict("review already submitted")
		}

		if err := q.ApplyRating(ctx, p.Counterparty(reviewerID), rating); err != nil {
			return repository.Translate(err, "account")
		}

		project, err = q.GetProject(ctx, projectID)
		return repository.Translate(err, "project")
	})
	if err != nil {
		metrics.IncrementOperationError("submit_review", string(apperror.KindOf(err)))
		return nil, err
	}

	metrics.IncrementEngagementEvent("review_submitted")
	logger.WithTrace(ctx, l.logger).Info("Review submitted",
		zap.String("project_id", projectID.String()),
		zap.String("reviewer_id", reviewerID.String()),
		zap.Int("rating", rating),
	)
	return project, nil
}
