package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "marketplace.events.dlq"
)

// DeclareDLQExchange declares the dead letter exchange.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareDLQQueue declares "<routingKey>.dlq" bound to the dead letter exchange.
func DeclareDLQQueue(ch *amqp091.Channel, routingKey string) (amqp091.Queue, error) {
	queueName := fmt.Sprintf("%s.dlq", routingKey)

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	return q, nil
}

// PublishToDLQ parks a message that will not succeed on redelivery.
func (p *Publisher) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, errorType string, originalError string) error {
	headers := amqp091.Table{
		"x-original-error": originalError,
		"x-error-type":     errorType,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(
		ctx,
		DLQExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp091.Persistent,
			Headers:      headers,
		},
	)
}
