package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/notify"
	"gigmarket/pkg/logger"
)

// Subscriber delivers realtime messages published for an account.
type Subscriber interface {
	Subscribe(ctx context.Context, accountID uuid.UUID, fn func(notify.Message)) error
}

type NotificationHandler struct {
	subscriber Subscriber
	heartbeat  time.Duration
	logger     *zap.Logger
}

func NewNotificationHandler(sub Subscriber, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{subscriber: sub, heartbeat: 25 * time.Second, logger: logger}
}

// Stream handles GET /notifications/stream as server-sent events until the
// client disconnects.
func (h *NotificationHandler) Stream(c *gin.Context) {
	uid, _ := principal(c)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	msgs := make(chan notify.Message, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := h.subscriber.Subscribe(ctx, uid, func(m notify.Message) {
			select {
			case msgs <- m:
			default:
				// slow reader, drop
			}
		})
		if err != nil && ctx.Err() == nil {
			logger.WithTrace(ctx, h.logger).Warn("Notification subscription ended", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-done:
			for {
				select {
				case m := <-msgs:
					c.SSEvent(m.Event, m.Data)
				default:
					return false
				}
			}
		case m := <-msgs:
			c.SSEvent(m.Event, m.Data)
			return true
		case <-ticker.C:
			c.SSEvent("ping", "")
			return true
		}
	})
}
