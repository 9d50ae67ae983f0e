package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"gigmarket/contracts/mq"
	"gigmarket/internal/processor"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
)

// Deduper marks a delivery key as seen; util.Deduper implements it on Redis.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, key string) bool
	Release(ctx context.Context, handler string, key string)
}

// EventApplier applies verified processor events.
type EventApplier interface {
	HandleEvent(ctx context.Context, ev *processor.Event) error
}

const processorEventHandler = "processor_event"

type ProcessorEventHandler struct {
	applier EventApplier
	dedup   Deduper
	logger  *zap.Logger
}

func NewProcessorEventHandler(applier EventApplier, dedup Deduper, logger *zap.Logger) *ProcessorEventHandler {
	return &ProcessorEventHandler{applier: applier, dedup: dedup, logger: logger}
}

// Handle applies one webhook event at most once per event ID. A failed
// application releases the marker so the redelivery is processed.
func (h *ProcessorEventHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mq.ProcessorEventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal ProcessorEventPayload", zap.Error(err))
		return err
	}
	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("event_id", p.EventID),
		zap.String("type", p.Type),
	)

	ev, err := processor.ParseEvent(p.Body)
	if err != nil {
		log.Error("Failed to parse processor event", zap.Error(err))
		return err
	}

	if !h.dedup.AcquireOnce(ctx, processorEventHandler, ev.ID) {
		metrics.IncrementDuplicateDelivery("webhook")
		return nil
	}

	if err := h.applier.HandleEvent(ctx, ev); err != nil {
		h.dedup.Release(ctx, processorEventHandler, ev.ID)
		log.Error("Failed to apply processor event", zap.Error(err))
		return err
	}

	log.Info("Processor event applied")
	return nil
}
