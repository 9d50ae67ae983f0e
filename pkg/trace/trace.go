package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// GenerateTraceID returns a fresh random trace id
func GenerateTraceID() string {
	return uuid.NewString()
}

// FromContext returns the trace id stored in ctx, or ""
func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext stores traceID in ctx
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// HeaderName is the HTTP header carrying the trace id
func HeaderName() string {
	return "X-Trace-ID"
}
