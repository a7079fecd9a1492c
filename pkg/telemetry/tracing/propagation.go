package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"fastllm-hq/turbine/pkg/telemetry/logging"
)

// Propagator returns the configured text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// Extract extracts W3C trace context from HTTP headers.
// If no trace context is found, the original context is returned.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return Propagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject injects trace context into HTTP headers.
func Inject(ctx context.Context, headers http.Header) {
	Propagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// HTTPMiddleware starts a server span for each request, continuing any
// trace found in the request headers. When the span is valid its trace ID
// is echoed in the X-Trace-ID response header and stored in the request
// context for logging.
func HTTPMiddleware(t *Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := Extract(r.Context(), r.Header)
		ctx, span := t.Start(ctx, "http "+r.URL.Path)
		defer span.End()

		if sc := span.SpanContext(); sc.IsValid() {
			id := sc.TraceID().String()
			w.Header().Set("X-Trace-ID", id)
			ctx = logging.WithTraceID(ctx, id)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
