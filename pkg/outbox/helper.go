package outbox

import (
	"context"
	"encoding/json"
)

// InsertEventInTx marshals payload and enqueues it inside tx.
func InsertEventInTx(
	ctx context.Context,
	tx Querier,
	repo *Repository,
	aggregateType string,
	aggregateID *string,
	routingKey string,
	payload any,
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}

	return repo.InsertEvent(ctx, tx, event)
}

// traceIDFromPayload reads the optional trace_id field of an encoded payload.
func traceIDFromPayload(payload json.RawMessage) string {
	var p struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return ""
	}
	return p.TraceID
}
