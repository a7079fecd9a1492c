// Package features provides the process-wide feature flag registry.
//
// Flags gate each engine, substitution itself and performance tracking.
// They are read by the facade, the controller and diagnostics; engines
// never change them.
//
// # Sources
//
// Values are layered, later sources winning:
//
//  1. built-in defaults (every built-in flag is enabled)
//  2. features.flags in the configuration file
//  3. the flag file named by features.file
//  4. TURBINE_FEATURE_<NAME>=true|false environment variables
//  5. Set, for administrative overrides
//
// # Flag File
//
//	features:
//	  connection_pool: false
//	  performance_tracking: true
//
// Watch reloads the file on change with a short debounce. A file that fails
// to parse leaves the previous flags in effect.
package features
