package logging

import (
	"context"
)

type contextKey string

const (
	// OperationKey is the context key for the hookable operation name.
	OperationKey contextKey = "operation"

	// EngineKey is the context key for the engine serving a call.
	EngineKey contextKey = "engine"

	// EndpointKey is the context key for a pool endpoint.
	EndpointKey contextKey = "endpoint"

	// LeaseIDKey is the context key for a connection lease ID.
	LeaseIDKey contextKey = "lease_id"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

var contextFields = []contextKey{OperationKey, EngineKey, EndpointKey, LeaseIDKey, TraceIDKey}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, OperationKey, op)
}

// WithEngine adds an engine name to the context.
func WithEngine(ctx context.Context, engine string) context.Context {
	return context.WithValue(ctx, EngineKey, engine)
}

// WithEndpoint adds a pool endpoint to the context.
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, EndpointKey, endpoint)
}

// WithLeaseID adds a connection lease ID to the context.
func WithLeaseID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, LeaseIDKey, id)
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// FromContext returns the value stored under key, or "".
func FromContext(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// extractContextFields returns the key/value pairs stored in ctx.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range contextFields {
		if v := FromContext(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
