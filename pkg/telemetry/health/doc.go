// Package health runs component health checks and serves check endpoints.
//
// # Checks
//
// A Checker holds named CheckFuncs and runs each with a timeout. A check
// that panics or does not return in time is reported as unhealthy rather
// than propagating to the caller:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("rate_limiter", limiter.HealthCheck)
//	result := checker.Run(ctx, "rate_limiter")
//	if !result.Healthy() {
//	    log.Println(result.Message)
//	}
//
// # Endpoints
//
//   - LivenessHandler: the process is running
//   - ReadinessHandler: every registered check passes (503 otherwise)
//   - VersionHandler: build information
//
// RateLimitedHandler protects any of them with a token bucket.
package health
