package mqhandler

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/contracts/mq"
	"gigmarket/pkg/logger"
)

// Notifier delivers a realtime message to one account.
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, event string, data any) (int64, error)
}

type ProjectCreatedHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewProjectCreatedHandler(notifier Notifier, logger *zap.Logger) *ProjectCreatedHandler {
	return &ProjectCreatedHandler{notifier: notifier, logger: logger}
}

// Handle tells the awarded freelancer about their new project. Delivery is
// best effort: a failed push is logged and the message is still acked.
func (h *ProjectCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mq.ProjectCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal ProjectCreatedPayload", zap.Error(err))
		return err
	}

	freelancerID, err := uuid.Parse(p.FreelancerID)
	if err != nil {
		h.logger.Error("Invalid freelancer id in project.created", zap.String("freelancer_id", p.FreelancerID))
		return err
	}

	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("project_id", p.ProjectID),
		zap.String("freelancer_id", p.FreelancerID),
	)
	receivers, err := h.notifier.Notify(ctx, freelancerID, mq.RoutingKeyProjectCreated, p)
	if err != nil {
		log.Warn("Failed to notify freelancer", zap.Error(err))
		return nil
	}
	log.Info("Freelancer notified", zap.Int64("receivers", receivers))
	return nil
}
