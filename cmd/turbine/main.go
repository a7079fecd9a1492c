// Turbine runs and inspects the acceleration subsystem: engines that stand
// in for the host's token counting, rate limiting and connection handling.
//
// Usage:
//
//	# Serve health, stats, feature flags and metrics over HTTP
//	turbine serve --config turbine.yaml
//
//	# One-shot health report
//	turbine health --output json
//
//	# Compare default and accelerated throughput
//	turbine bench --iterations 10000
//
//	# Toggle a feature in the watched feature file
//	turbine features set connection_pool false
package main

func main() {
	Execute()
}
