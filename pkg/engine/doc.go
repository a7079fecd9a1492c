// Package engine defines the contracts shared by the acceleration engines.
//
// # Overview
//
// An engine is one of the three substitutable performance components:
//
//   - Token counter: approximate token counting with a bounded cache
//   - Rate limiter: per-key sliding window admission control
//   - Connection pool: per-endpoint connection checkout and return
//
// Every engine implements Engine so that the facade, the substitution
// controller and the diagnostics layer can treat them uniformly.
//
// # Errors
//
// Engine failures are reported as *Error values carrying a Kind. The four
// kinds mirror how the host is expected to react:
//
//   - KindInvalidArgument: malformed call parameters, surfaced to the caller
//   - KindUnavailable: engine not loaded, reported as data by diagnostics
//   - KindTimeout: pool checkout exceeded its wait bound
//   - KindUnhealthy: engine loaded but an internal invariant check failed
//
// Callers match kinds with errors.Is against the package sentinels:
//
//	lease, err := p.Checkout(ctx, "api.example.com:443")
//	if errors.Is(err, engine.ErrTimeout) {
//	    // saturated, fall back or retry later
//	}
package engine
