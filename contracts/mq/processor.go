package mq

import (
	"encoding/json"
	"time"
)

// ProcessorEventPayload wraps a verified payment processor webhook body so
// the worker can apply it asynchronously.
type ProcessorEventPayload struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
	TraceID    string          `json:"trace_id,omitempty"`
}
