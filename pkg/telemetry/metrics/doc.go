// Package metrics provides Prometheus metrics for turbine.
//
// # Overview
//
// A Collector owns a registry and three groups of metrics:
//
//   - Operation metrics: calls and durations recorded by substitution
//     adapters, labelled by component and operation
//   - Engine metrics: cache, limiter and pool counters read from the
//     engines at scrape time through CounterFunc and GaugeFunc collectors
//   - State metrics: bound host sites, feature flags, component health
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RegisterEngines(metrics.Sources{
//		Tokens:    counter.Stats,
//		RateLimit: limiter.Stats,
//	})
//	collector.RecordOperation("rate_limiter", "check_rate_limit", d, true)
//	mux.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Distinct (component, operation) pairs are capped at MaxOperationLabels;
// further operations are recorded under the operation label "other".
package metrics
