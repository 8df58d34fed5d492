package logging

import (
	"context"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 7)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if v := RequestIDFromContext(ctx); v != "" {
		fields = append(fields, zap.String("request.id", v))
	}
	if v := CallerIDFromContext(ctx); v != "" {
		fields = append(fields, zap.String("caller.id", v))
	}
	if v := SessionIDFromContext(ctx); v != "" {
		fields = append(fields, zap.String("session.id", v))
	}
	if v := HelpRequestIDFromContext(ctx); v != "" {
		fields = append(fields, zap.String("help_request.id", v))
	}

	return fields
}

type (
	requestCtxKey     struct{}
	callerCtxKey      struct{}
	sessionCtxKey     struct{}
	helpRequestCtxKey struct{}
	loggerCtxKey      struct{}
)

const maxIDLen = 128

// idPattern admits uuids, request ids and E.164-style caller numbers.
var idPattern = regexp.MustCompile(`^\+?[a-zA-Z0-9_.:-]+$`)

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && utf8.ValidString(id) && idPattern.MatchString(id)
}

func withID(ctx context.Context, key any, id string) context.Context {
	// Caller supplied ids may be arbitrary text; malformed ones are not logged.
	if !validID(id) {
		return ctx
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key any) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithRequestID adds the HTTP request ID to context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext extracts the HTTP request ID from context.
func RequestIDFromContext(ctx context.Context) string { return idFrom(ctx, requestCtxKey{}) }

// WithCallerID adds the caller identifier to context.
func WithCallerID(ctx context.Context, id string) context.Context {
	return withID(ctx, callerCtxKey{}, id)
}

// CallerIDFromContext extracts the caller identifier from context.
func CallerIDFromContext(ctx context.Context) string { return idFrom(ctx, callerCtxKey{}) }

// WithSessionID adds the call session ID to context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withID(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext extracts the call session ID from context.
func SessionIDFromContext(ctx context.Context) string { return idFrom(ctx, sessionCtxKey{}) }

// WithHelpRequestID adds the help request ID to context.
func WithHelpRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, helpRequestCtxKey{}, id)
}

// HelpRequestIDFromContext extracts the help request ID from context.
func HelpRequestIDFromContext(ctx context.Context) string { return idFrom(ctx, helpRequestCtxKey{}) }

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if none was stored.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
