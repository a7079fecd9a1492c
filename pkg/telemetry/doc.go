// Package telemetry groups the observability packages used by turbine.
//
// # Components
//
//   - logging: slog-based structured logging with key redaction
//   - metrics: Prometheus collectors for engine operations and state
//   - tracing: OpenTelemetry spans for substitution and pool checkouts
//   - health: check registry and the liveness, readiness and version handlers
//
// # Usage
//
//	cfg := config.GetConfig()
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Redaction
//
// Rate limit keys are often derived from API keys, so logged values under
// credential-like keys are masked:
//
//   - API keys: sk-abc123 → sk-***
//   - Emails: user@example.com → u***@example.com
//   - IP addresses: 192.168.1.1 → 192.*.*.*
package telemetry
