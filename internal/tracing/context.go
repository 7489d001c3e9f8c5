package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// TransportKey is the context key for the transport that delivered the event
	TransportKey ContextKey = "transport"
	// ChannelKey is the context key for the channel the event came from
	ChannelKey ContextKey = "channel"
)

// TraceContext holds tracing information for one inbound event
type TraceContext struct {
	TraceID   string
	Transport string
	Channel   string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithTransport adds the transport name to the context
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, TransportKey, transport)
}

// WithChannel adds the source channel to the context
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ChannelKey, channel)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetTransport retrieves the transport name from the context
func GetTransport(ctx context.Context) string {
	if transport, ok := ctx.Value(TransportKey).(string); ok {
		return transport
	}
	return ""
}

// GetChannel retrieves the channel from the context
func GetChannel(ctx context.Context) string {
	if channel, ok := ctx.Value(ChannelKey).(string); ok {
		return channel
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		Transport: GetTransport(ctx),
		Channel:   GetChannel(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.Transport != "" {
		ctx = WithTransport(ctx, tc.Transport)
	}
	if tc.Channel != "" {
		ctx = WithChannel(ctx, tc.Channel)
	}
	return ctx
}

// NewEventContext creates a context for one inbound event with a fresh trace ID
func NewEventContext(ctx context.Context, transport, channel string) context.Context {
	return NewContext(ctx, &TraceContext{
		TraceID:   NewTraceID(),
		Transport: transport,
		Channel:   channel,
	})
}
