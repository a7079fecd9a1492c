// Package substitution rebinds host call sites to the accelerated engines.
//
// A Controller owns the binding record for one set of host hooks. Apply
// checks every loaded engine and swaps the matching site to a thin adapter
// around it; Remove puts back the exact strategy each site held before.
//
//	ctrl := substitution.New(hooks, facade,
//	    substitution.WithFlags(registry),
//	    substitution.WithRecorder(diag),
//	)
//	if ctrl.Apply(ctx) {
//	    defer ctrl.Remove(ctx)
//	}
//
// Apply and Remove are idempotent. An engine that fails its pre-bind
// health check is skipped and its site keeps the default strategy.
package substitution
