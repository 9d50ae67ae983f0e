package settlement

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/processor"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
)

// HandleEvent applies a verified processor webhook event. Unknown types are
// ignored.
func (e *Engine) HandleEvent(ctx context.Context, ev *processor.Event) error {
	switch ev.Type {
	case processor.EventPaymentSucceeded:
		return e.ApplyCaptureEvent(ctx, ev)
	case processor.EventSubscriptionDeleted:
		return e.ApplySubscriptionCancellation(ctx, ev.Subscription().ID)
	default:
		logger.WithTrace(ctx, e.logger).Debug("Ignoring processor event",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
		)
		return nil
	}
}

// ApplyCaptureEvent settles a payment_intent.succeeded event against the
// project named in the intent's metadata.
func (e *Engine) ApplyCaptureEvent(ctx context.Context, ev *processor.Event) error {
	intent := ev.Intent()
	if intent.Status != processor.IntentSucceeded {
		return apperror.PaymentNotCompleted("payment status is " + intent.Status)
	}
	projectID, err := uuid.Parse(intent.Metadata["projectId"])
	if err != nil {
		logger.WithTrace(ctx, e.logger).Warn("Capture event without project reference",
			zap.String("event_id", ev.ID),
			zap.String("intent_id", intent.ID),
		)
		return apperror.InvalidArgument("payment intent has no project reference")
	}
	_, err = e.ApplyCapture(ctx, projectID, intent.Amount, intent.ID)
	return err
}
