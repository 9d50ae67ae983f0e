package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/contracts/mq"
	"gigmarket/internal/processor"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/trace"
)

const maxWebhookBody = 1 << 20

// EventPublisher puts verified processor events on the bus.
type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// WebhookHandler verifies processor callbacks and hands them to the worker.
// The request is acknowledged once the event is on the bus; settlement
// happens asynchronously.
type WebhookHandler struct {
	publisher EventPublisher
	secret    string
	tolerance time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewWebhookHandler(pub EventPublisher, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		publisher: pub,
		secret:    secret,
		tolerance: processor.DefaultTolerance,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessorWebhook handles POST /webhooks/processor
func (h *WebhookHandler) ProcessorWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithTrace(ctx, h.logger)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}

	if err := processor.VerifySignature(body, c.GetHeader(processor.SignatureHeader), h.secret, h.tolerance, h.now()); err != nil {
		log.Warn("Rejected processor webhook", zap.Error(err))
		badRequest(c, "invalid signature")
		return
	}

	ev, err := processor.ParseEvent(body)
	if err != nil {
		badRequest(c, "malformed event")
		return
	}

	payload := mq.ProcessorEventPayload{
		EventID:    ev.ID,
		Type:       ev.Type,
		Body:       body,
		ReceivedAt: h.now().UTC(),
		TraceID:    trace.FromContext(ctx),
	}
	if err := h.publisher.PublishWithContext(ctx, mq.RoutingKeyProcessorEvent, payload); err != nil {
		// a 5xx makes the processor redeliver
		log.Error("Failed to enqueue processor event",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "try again later", "kind": "service_unavailable"})
		return
	}

	log.Info("Processor event enqueued",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
