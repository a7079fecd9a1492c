// Package tracing provides OpenTelemetry tracing for turbine.
//
// When telemetry.tracing.enabled is false, New returns a noop tracer and
// spans cost almost nothing. When enabled, spans are batched to an OTLP
// gRPC collector:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// Spans are created for substitution apply and remove, connection pool
// checkout, and diagnostics HTTP requests. Attribute keys live in the
// turbine.* namespace (see attributes.go).
package tracing
