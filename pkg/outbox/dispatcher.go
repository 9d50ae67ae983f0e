package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gigmarket/pkg/trace"
)

// Publisher is the part of mq.Publisher the outbox needs.
type Publisher interface {
	PublishRaw(ctx context.Context, routingKey string, body []byte) error
}

// Dispatcher polls the outbox and publishes pending events to the bus.
type Dispatcher struct {
	repo       *Repository
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

func NewDispatcher(repo *Repository, publisher Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,
		interval:   1 * time.Second,
		batchSize:  100,
	}
}

func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	d.maxRetries = maxRetries
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	d.interval = interval
	return d
}

func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	d.batchSize = batchSize
	return d
}

// Start blocks until ctx is cancelled; run it in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting outbox dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.processPendingEvents(ctx)
		}
	}
}

func (d *Dispatcher) processPendingEvents(ctx context.Context) {
	events, err := d.repo.GetPendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to get pending events", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	for _, event := range events {
		if err := d.publishEvent(ctx, event); err != nil {
			d.logger.Error("Failed to publish event",
				zap.Int64("event_id", event.ID),
				zap.String("routing_key", event.RoutingKey),
				zap.Error(err),
			)
			if err := d.repo.MarkAsFailed(ctx, event.ID, d.maxRetries); err != nil {
				d.logger.Error("Failed to mark event as failed",
					zap.Int64("event_id", event.ID),
					zap.Error(err),
				)
			}
			continue
		}

		if err := d.repo.MarkAsSent(ctx, event.ID); err != nil {
			d.logger.Error("Failed to mark event as sent",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) publishEvent(ctx context.Context, event *Event) error {
	if traceID := traceIDFromPayload(event.Payload); traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	return d.publisher.PublishRaw(ctx, event.RoutingKey, event.Payload)
}
