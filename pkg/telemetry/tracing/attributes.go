package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Custom keys use the "turbine.*" namespace.
const (
	AttrComponent = "turbine.component"
	AttrOperation = "turbine.operation"
	AttrSite      = "turbine.site"

	AttrEndpoint = "turbine.pool.endpoint"
	AttrLeaseID  = "turbine.pool.lease_id"
	AttrReused   = "turbine.pool.reused"

	AttrApplied    = "turbine.substitution.applied"
	AttrBoundSites = "turbine.substitution.bound_sites"
	AttrSkipReason = "turbine.substitution.skip_reason"

	AttrAvailable    = "turbine.accel.available"
	AttrErrorKind    = "turbine.error.kind"
	AttrErrorMessage = "error.message"
)

// SetComponentAttributes sets component and operation attributes on a span.
//
// Example:
//
//	SetComponentAttributes(span, "connection_pool", "checkout")
func SetComponentAttributes(span trace.Span, component, operation string) {
	span.SetAttributes(
		attribute.String(AttrComponent, component),
		attribute.String(AttrOperation, operation),
	)
}

// SetSkipAttributes records why an engine was not bound.
func SetSkipAttributes(span trace.Span, component, reason string) {
	span.AddEvent("engine skipped", trace.WithAttributes(
		attribute.String(AttrComponent, component),
		attribute.String(AttrSkipReason, reason),
	))
}

// SetSubstitutionAttributes records the outcome of an apply.
func SetSubstitutionAttributes(span trace.Span, applied bool, sites []string) {
	span.SetAttributes(
		attribute.Bool(AttrApplied, applied),
		attribute.StringSlice(AttrBoundSites, sites),
	)
}

// SetErrorKind records an error classification.
func SetErrorKind(span trace.Span, kind string) {
	if kind == "" {
		return
	}
	span.SetAttributes(attribute.String(AttrErrorKind, kind))
}
