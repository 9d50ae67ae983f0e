package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"gigmarket/pkg/metrics"
	"gigmarket/pkg/trace"
	"gigmarket/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// Consumer reads one queue bound to one routing key. Every delivery ends in
// exactly one ack or nack.
type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger

	// optional dead-lettering
	dlq          *Publisher
	retryCounter *util.RetryCounter
	maxRetries   int64

	stopOnce sync.Once
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := DeclareDLQExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare dlq exchange: %w", err)
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(10, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
		maxRetries: 5,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// WithDeadLetter enables parking messages in "<routing_key>.dlq" once they are
// non-retryable or have been redelivered more than maxRetries times.
func (c *Consumer) WithDeadLetter(pub *Publisher, counter *util.RetryCounter, maxRetries int64) *Consumer {
	c.dlq = pub
	c.retryCounter = counter
	c.maxRetries = maxRetries
	return c
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop closes the channel, which ends StartConsuming.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		if c.channel != nil {
			_ = c.channel.Close()
		}
	})
}

func (c *Consumer) Close() {
	c.Stop()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until the channel closes; run it in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.handleDelivery(msg)
	}

	c.logger.Info("Consumer stopped", zap.String("queue", c.queue.Name))
	return nil
}

func (c *Consumer) handleDelivery(msg amqp091.Delivery) {
	start := time.Now()
	ctx := context.Background()
	if traceID, ok := msg.Headers[trace.HeaderName()].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.String("queue", c.queue.Name),
				zap.Any("panic", r),
			)
			c.reject(ctx, msg, fmt.Errorf("handler panic: %v", r))
		}
	}()

	err := c.handler(ctx, msg.Body)
	metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	if err != nil {
		c.logger.Error("Handler error",
			zap.String("routing_key", c.routingKey),
			zap.String("queue", c.queue.Name),
			zap.Error(err),
		)
		c.reject(ctx, msg, err)
		return
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message",
			zap.String("routing_key", c.routingKey),
			zap.Error(err),
		)
	}
}

// reject requeues retryable failures and dead-letters the rest.
func (c *Consumer) reject(ctx context.Context, msg amqp091.Delivery, handlerErr error) {
	retryable, errType := util.IsRetryableError(handlerErr)

	if c.dlq != nil {
		attempts := int64(0)
		if retryable && c.retryCounter != nil {
			key := util.FormatRetryKey(c.queue.Name, msg.Body)
			if n, err := c.retryCounter.IncrementAndGet(ctx, key); err == nil {
				attempts = n
			}
		}

		if !util.ShouldRetry(attempts, c.maxRetries, retryable) {
			if err := c.dlq.PublishToDLQ(ctx, c.routingKey, msg.Body, errType, handlerErr.Error()); err != nil {
				c.logger.Error("Failed to publish to DLQ, requeueing",
					zap.String("routing_key", c.routingKey),
					zap.Error(err),
				)
				_ = msg.Nack(false, true)
				return
			}
			c.logger.Warn("Message dead-lettered",
				zap.String("routing_key", c.routingKey),
				zap.String("error_type", errType),
				zap.Int64("attempts", attempts),
			)
			_ = msg.Ack(false)
			return
		}
	}

	if err := msg.Nack(false, true); err != nil {
		c.logger.Error("Failed to nack message",
			zap.String("routing_key", c.routingKey),
			zap.Error(err),
		)
	}
}
