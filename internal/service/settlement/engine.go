// Package settlement applies captured payments to projects and balances and
// keeps subscription tiers in line with the payment processor.
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/processor"
	"gigmarket/internal/repository"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/config"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
	"gigmarket/pkg/rbac"
)

// Processor is the subset of the payment processor the engine drives.
type Processor interface {
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*processor.Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*processor.Intent, error)
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*processor.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*processor.Subscription, error)
}

type Engine struct {
	store     repository.Store
	processor Processor
	market    config.MarketConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(store repository.Store, proc Processor, market config.MarketConfig, log *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		processor: proc,
		market:    market,
		logger:    log,
		now:       time.Now,
	}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Split divides a captured total into the platform fee and the freelancer's
// earnings. Earnings are the remainder, so the two always sum to total.
func Split(total, rate decimal.Decimal) (platformFee, freelancerEarnings decimal.Decimal) {
	platformFee = total.Mul(rate).Round(2)
	freelancerEarnings = total.Sub(platformFee)
	return platformFee, freelancerEarnings
}

// ApplyCapture records amount captured under externalRef against the
// project and credits the freelancer's share to their balance, all in one
// transaction. A capture on a completed project also adds to the
// freelancer's total earnings. A reference seen before is a no-op that
// returns the project unchanged.
func (e *Engine) ApplyCapture(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal, externalRef string) (*model.Project, error) {
	if !amount.IsPositive() {
		return nil, apperror.InvalidArgument("captured amount must be positive")
	}
	if externalRef == "" {
		return nil, apperror.InvalidArgument("capture reference is required")
	}
	amount = amount.Round(2)

	var (
		project   *model.Project
		applied   bool
		fee, earn decimal.Decimal
	)
	err := e.store.WithTx(ctx, func(q repository.Queries) error {
		p, err := q.LockProject(ctx, projectID)
		if err != nil {
			return repository.Translate(err, "project")
		}

		applied, err = q.RecordCapture(ctx, projectID, externalRef, amount)
		if err != nil {
			return repository.Translate(err, "capture")
		}
		if applied {
			fee, earn = Split(amount, e.market.CommissionRate)
			if err := q.AddPayment(ctx, projectID, amount, fee, earn, externalRef); err != nil {
				return repository.Translate(err, "project")
			}
			if err := q.CreditBalance(ctx, p.FreelancerID, earn); err != nil {
				return repository.Translate(err, "account")
			}
			// completion has already folded earlier captures into total earnings
			if p.Status == model.ProjectCompleted {
				if err := q.CreditEarnings(ctx, p.FreelancerID, earn); err != nil {
					return repository.Translate(err, "account")
				}
			}
		}

		project, err = q.GetProject(ctx, projectID)
		return repository.Translate(err, "project")
	})
	if err != nil {
		metrics.IncrementOperationError("confirm_capture", string(apperror.KindOf(err)))
		return nil, err
	}

	log := logger.WithTrace(ctx, e.logger)
	if !applied {
		metrics.IncrementDuplicateDelivery("capture")
		log.Info("Capture already applied",
			zap.String("project_id", projectID.String()),
			zap.String("external_ref", externalRef),
		)
		return project, nil
	}

	metrics.AddSettledAmount(fee.InexactFloat64(), earn.InexactFloat64())
	log.Info("Capture settled",
		zap.String("project_id", projectID.String()),
		zap.String("external_ref", externalRef),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("platform_fee", fee.StringFixed(2)),
		zap.String("freelancer_earnings", earn.StringFixed(2)),
	)
	return project, nil
}

// ConfirmCapture asks the processor for the intent's state and settles it
// when the funds were collected.
func (e *Engine) ConfirmCapture(ctx context.Context, projectID, actorID uuid.UUID, role, intentID string) (*model.Project, error) {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, repository.Translate(err, "project")
	}
	if p.ClientID != actorID && role != rbac.RoleAdmin {
		return nil, apperror.Forbidden("only the client can confirm a payment")
	}

	intent, err := e.processor.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, asUnavailable(err)
	}
	if intent.Status != processor.IntentSucceeded {
		metrics.IncrementOperationError("confirm_capture", string(apperror.KindPaymentNotCompleted))
		return nil, apperror.PaymentNotCompleted("payment status is " + intent.Status)
	}
	if ref := intent.Metadata["projectId"]; ref != "" && ref != projectID.String() {
		return nil, apperror.InvalidArgument("payment belongs to another project")
	}
	return e.ApplyCapture(ctx, projectID, intent.Amount, intent.ID)
}

// CreatePaymentIntent opens a processor intent for the client to fund the
// project and adds the amount to escrow.
func (e *Engine) CreatePaymentIntent(ctx context.Context, projectID, clientID uuid.UUID, amount decimal.Decimal) (*processor.Intent, error) {
	if !amount.IsPositive() {
		return nil, apperror.InvalidArgument("amount must be positive")
	}
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, repository.Translate(err, "project")
	}
	if p.ClientID != clientID {
		return nil, apperror.Forbidden("only the client can fund the project")
	}
	if p.Status != model.ProjectActive && p.Status != model.ProjectInReview {
		return nil, apperror.InvalidState("project is " + p.Status)
	}

	currency := p.Budget.Currency
	if currency == "" {
		currency = e.market.Currency
	}
	intent, err := e.processor.CreatePaymentIntent(ctx, amount.Round(2), currency, map[string]string{
		"projectId":    p.ID.String(),
		"clientId":     p.ClientID.String(),
		"freelancerId": p.FreelancerID.String(),
	})
	if err != nil {
		return nil, asUnavailable(err)
	}
	if err := e.store.AddEscrow(ctx, projectID, amount.Round(2)); err != nil {
		return nil, repository.Translate(err, "project")
	}

	logger.WithTrace(ctx, e.logger).Info("Payment intent created",
		zap.String("project_id", projectID.String()),
		zap.String("intent_id", intent.ID),
	)
	return intent, nil
}

// asUnavailable keeps typed processor errors and treats anything else as an
// outage.
func asUnavailable(err error) error {
	if apperror.KindOf(err) == apperror.KindInternal {
		return apperror.ServiceUnavailable("payment processor call failed", err)
	}
	return err
}
