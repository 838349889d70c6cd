package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for tracing context keys
type ContextKey string

const (
	// TraceIDKey is the context key for the request trace ID
	TraceIDKey ContextKey = "trace_id"
	// InvocationIDKey is the context key for the agent invocation ID
	InvocationIDKey ContextKey = "invocation_id"
	// SessionKeyKey is the context key for the session key
	SessionKeyKey ContextKey = "session_key"
)

// TraceContext holds the tracing identifiers for one request
type TraceContext struct {
	TraceID      string
	InvocationID string
	SessionKey   string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewInvocationID generates a new invocation ID
func NewInvocationID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithInvocationID adds an invocation ID to the context
func WithInvocationID(ctx context.Context, invocationID string) context.Context {
	return context.WithValue(ctx, InvocationIDKey, invocationID)
}

// WithSessionKey adds a session key to the context
func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	return context.WithValue(ctx, SessionKeyKey, sessionKey)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetInvocationID retrieves the invocation ID from the context
func GetInvocationID(ctx context.Context) string {
	if invocationID, ok := ctx.Value(InvocationIDKey).(string); ok {
		return invocationID
	}
	return ""
}

// GetSessionKey retrieves the session key from the context
func GetSessionKey(ctx context.Context) string {
	if sessionKey, ok := ctx.Value(SessionKeyKey).(string); ok {
		return sessionKey
	}
	return ""
}

// FromContext extracts all tracing identifiers from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:      GetTraceID(ctx),
		InvocationID: GetInvocationID(ctx),
		SessionKey:   GetSessionKey(ctx),
	}
}

// NewContext creates a context carrying the given tracing identifiers
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.InvocationID != "" {
		ctx = WithInvocationID(ctx, tc.InvocationID)
	}
	if tc.SessionKey != "" {
		ctx = WithSessionKey(ctx, tc.SessionKey)
	}
	return ctx
}

// NewRequestContext creates a context for a new request with a fresh trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// NewInvocationContext creates a context for a new agent invocation
func NewInvocationContext(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithInvocationID(ctx, NewInvocationID())
}

// LoggerFromContext returns a logger annotated with the context's tracing fields
func LoggerFromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		base = base.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.InvocationID != "" {
		base = base.With().Str("invocation_id", tc.InvocationID).Logger()
	}
	if tc.SessionKey != "" {
		base = base.With().Str("session_key", tc.SessionKey).Logger()
	}

	return base
}
