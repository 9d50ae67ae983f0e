package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OutboxReplayer re-publishes outbox events.
type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

// QuotaSweeper resets the monthly allowance of stale accounts.
type QuotaSweeper interface {
	SweepResets(ctx context.Context) (int64, error)
}

type AdminHandler struct {
	replayer OutboxReplayer
	sweeper  QuotaSweeper
	logger   *zap.Logger
}

func NewAdminHandler(replayer OutboxReplayer, sweeper QuotaSweeper, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{replayer: replayer, sweeper: sweeper, logger: logger}
}

// ReplayOutboxEvent handles POST /admin/outbox/replay?id=
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	idStr := c.Query("id")
	if idStr == "" {
		badRequest(c, "missing id parameter")
		return
	}
	eventID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		badRequest(c, "invalid id parameter")
		return
	}

	if err := h.replayer.ReplayEvent(c.Request.Context(), eventID); err != nil {
		h.logger.Error("Failed to replay event", zap.Int64("event_id", eventID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay event", "kind": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "replayed", "event_id": eventID})
}

// ReplayFailedEvents handles POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	n, err := h.replayer.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay failed events", "kind": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed", "success_count": n, "limit": limit})
}

// SweepQuotas handles POST /admin/quota/sweep
func (h *AdminHandler) SweepQuotas(c *gin.Context) {
	n, err := h.sweeper.SweepResets(c.Request.Context())
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": n})
}
