package repository

import (
	"context"

	"github.com/google/uuid"

	"gigmarket/pkg/outbox"
)

// EventRepository writes outbox rows on the same connection as the business
// statements around it.
type EventRepository struct {
	db     DBTX
	outbox *outbox.Repository
}

func NewEventRepository(db DBTX, ob *outbox.Repository) *EventRepository {
	return &EventRepository{db: db, outbox: ob}
}

func (r *EventRepository) EnqueueEvent(ctx context.Context, aggregateType string, aggregateID uuid.UUID, routingKey string, payload any) error {
	id := aggregateID.String()
	return outbox.InsertEventInTx(ctx, r.db, r.outbox, aggregateType, &id, routingKey, payload)
}
