// Package server provides the diagnostics HTTP server.
//
// Routes:
//
//	GET  /healthz          liveness, rate limited
//	GET  /readyz           readiness over every engine check, rate limited
//	GET  /health           full health report, 503 when not overall healthy
//	GET  /stats            aggregated operation timings
//	GET  /features         feature flag status
//	PUT  /features/{name}  set a flag: {"enabled": true|false}
//	GET  /snapshots        stored performance snapshots, newest first
//	GET  /metrics          Prometheus exposition
//	GET  /version          build information
//
// Every request runs inside a trace span and carries an X-Request-ID.
// A panicking handler yields a 500 and never takes the process down.
//
// The server binds to 127.0.0.1 by default; the /features route changes
// runtime behaviour and has no authentication.
package server
