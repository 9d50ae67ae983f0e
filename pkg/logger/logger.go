package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gigmarket/pkg/trace"
)

var Log *zap.Logger

// NewLogger builds the production logger. level accepts debug/info/warn/error;
// an empty or unknown level keeps info.
func NewLogger(level ...string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if len(level) > 0 && level[0] != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level[0])); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace attaches the trace_id carried by ctx, if any
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
