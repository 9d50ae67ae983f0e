package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gigmarket/pkg/trace"
)

// ReplayService republishes events by hand or from the scheduler.
type ReplayService struct {
	repo      *Repository
	publisher Publisher
	logger    *zap.Logger
}

func NewReplayService(repo *Repository, publisher Publisher, logger *zap.Logger) *ReplayService {
	return &ReplayService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// ReplayEvent publishes one event immediately, whatever its status.
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	event, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}

	if traceID := traceIDFromPayload(event.Payload); traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	if err := s.publisher.PublishRaw(ctx, event.RoutingKey, event.Payload); err != nil {
		if markErr := s.repo.MarkAsFailed(ctx, eventID, 5); markErr != nil {
			return fmt.Errorf("failed to publish and mark as failed: %w (mark error: %v)", err, markErr)
		}
		return fmt.Errorf("failed to publish: %w", err)
	}

	if err := s.repo.MarkAsSent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	return nil
}

// ReplayFailedEvents returns up to limit failed events to the pending queue so
// the dispatcher picks them up again. It returns how many were reset.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	reset := 0
	for _, event := range events {
		if err := s.repo.ResetEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Failed to reset outbox event",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		reset++
	}
	return reset, nil
}
