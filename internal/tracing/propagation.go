package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext adds tracing context to a zerolog logger
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.Transport != "" {
		logger = logger.With().Str("transport", tc.Transport).Logger()
	}
	if tc.Channel != "" {
		logger = logger.With().Str("channel", tc.Channel).Logger()
	}

	return logger
}

// Detach returns a background context carrying the tracing values of ctx.
// Handlers use it so work outlives the transport's event loop cancelation.
func Detach(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
