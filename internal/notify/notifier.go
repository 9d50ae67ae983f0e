// Package notify pushes best-effort realtime messages to connected users
// over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message is the envelope published on a user's channel.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Channel is the pub/sub channel a user's sessions subscribe to.
func Channel(accountID uuid.UUID) string {
	return "user:" + accountID.String()
}

type RedisNotifier struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, logger: logger}
}

// Notify publishes event to the account's channel. It reports how many
// subscribers received it; zero is not an error.
func (n *RedisNotifier) Notify(ctx context.Context, accountID uuid.UUID, event string, data any) (int64, error) {
	body, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return 0, fmt.Errorf("encode notification: %w", err)
	}
	receivers, err := n.rdb.Publish(ctx, Channel(accountID), body).Result()
	if err != nil {
		return 0, fmt.Errorf("publish notification: %w", err)
	}
	n.logger.Debug("Notification published",
		zap.String("channel", Channel(accountID)),
		zap.String("event", event),
		zap.Int64("receivers", receivers),
	)
	return receivers, nil
}

// Subscribe listens on the account's channel until ctx ends.
func (n *RedisNotifier) Subscribe(ctx context.Context, accountID uuid.UUID, fn func(Message)) error {
	sub := n.rdb.Subscribe(ctx, Channel(accountID))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				n.logger.Warn("Dropping malformed notification", zap.Error(err))
				continue
			}
			fn(m)
		}
	}
}
