// Package accel loads the acceleration engines and reports what is usable.
//
// Load builds the token counter, rate limiter and connection pool from
// configuration, once. Each engine is gated by its feature flag and built
// in isolation: a bad configuration value or a panicking constructor marks
// that engine unavailable with a reason and leaves the others untouched.
//
//	facade := accel.Load(cfg, flags)
//	defer facade.Close()
//
//	if !facade.IsAvailable() {
//	    log.Println(facade.Unavailable())
//	}
//	for _, c := range facade.Capabilities() {
//	    fmt.Println(c.Name, c.Loaded, c.Reason)
//	}
//
// IsAvailable honours accel.required_engines. With no required engines,
// acceleration is available when any engine loaded.
package accel
