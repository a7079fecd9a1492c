// Package turbine is the call surface of the acceleration subsystem.
//
// A Runtime wires the host call sites, the engines, the substitution
// controller and diagnostics together from one configuration. Host code
// calls through the runtime (or the package-level functions, which use a
// lazily built process default) and gets the same results whether or not
// acceleration is applied.
//
//	rt, err := turbine.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	if rt.ApplyAcceleration(ctx) {
//	    n, _ := rt.CountTokens(prompt, "gpt-4")
//	    ok, _ := rt.CheckRateLimit(apiKey, 100, 60)
//	}
//
// With accel.auto_apply set, New applies acceleration itself when the
// engines are available.
package turbine
