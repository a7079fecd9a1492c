// Package diagnostics reports per-engine health and aggregates operation
// timings recorded by the substitution adapters.
//
// HealthCheck runs every loaded engine's check through a health.Checker,
// so a check that hangs or panics shows up as an unhealthy component
// rather than taking down the caller. Engines that never loaded are listed
// with the reason they are absent.
//
// RecordPerformance is cheap enough to call on every accelerated call. The
// number of distinct (component, operation) pairs is capped; anything past
// the cap is counted under the "other" operation.
package diagnostics
