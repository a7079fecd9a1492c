package metrics

import (
	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/engine/pool"
	"fastllm-hq/turbine/pkg/engine/ratelimit"
	"fastllm-hq/turbine/pkg/engine/tokens"

	"github.com/prometheus/client_golang/prometheus"
)

// Sources supplies engine statistics at scrape time. A nil function means
// the engine is not loaded and its metrics are not registered.
type Sources struct {
	Tokens     func() tokens.Stats
	RateLimit  func() ratelimit.Stats
	Pool       func() pool.Stats
	PoolReport func() pool.Report
}

type funcMetric struct {
	name  string
	help  string
	gauge bool
	value func() float64
}

// registerEngineMetrics exposes engine counters without duplicating them:
// every value is read from the engine when Prometheus scrapes.
//
// Metrics (prefix turbine_accel_):
//   - tokens_cache_{hits,misses,evictions}_total, tokens_cache_entries
//   - ratelimit_{admitted,rejected,evicted}_total, ratelimit_keys
//   - pool_{checkouts,dials,reuses,timeouts,discards,reaped}_total
//   - pool_in_use, pool_idle
func registerEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry, src Sources) {
	var defs []funcMetric

	if src.Tokens != nil {
		get := src.Tokens
		defs = append(defs,
			funcMetric{"tokens_cache_hits_total", "Token count cache hits", false, func() float64 { return float64(get().Hits) }},
			funcMetric{"tokens_cache_misses_total", "Token count cache misses", false, func() float64 { return float64(get().Misses) }},
			funcMetric{"tokens_cache_evictions_total", "Token count cache evictions", false, func() float64 { return float64(get().Evictions) }},
			funcMetric{"tokens_cache_entries", "Current token count cache entries", true, func() float64 { return float64(get().Size) }},
		)
	}

	if src.RateLimit != nil {
		get := src.RateLimit
		defs = append(defs,
			funcMetric{"ratelimit_admitted_total", "Rate limit admissions", false, func() float64 { return float64(get().Admitted) }},
			funcMetric{"ratelimit_rejected_total", "Rate limit rejections", false, func() float64 { return float64(get().Rejected) }},
			funcMetric{"ratelimit_evicted_total", "Stale rate limit windows evicted", false, func() float64 { return float64(get().Evicted) }},
			funcMetric{"ratelimit_keys", "Rate limit keys currently tracked", true, func() float64 { return float64(get().Keys) }},
		)
	}

	if src.Pool != nil {
		get := src.Pool
		defs = append(defs,
			funcMetric{"pool_checkouts_total", "Successful connection checkouts", false, func() float64 { return float64(get().Checkouts) }},
			funcMetric{"pool_dials_total", "New connections dialed", false, func() float64 { return float64(get().Dials) }},
			funcMetric{"pool_reuses_total", "Checkouts served from an idle connection", false, func() float64 { return float64(get().Reuses) }},
			funcMetric{"pool_timeouts_total", "Checkouts that timed out or failed fast", false, func() float64 { return float64(get().Timeouts) }},
			funcMetric{"pool_discards_total", "Connections closed instead of pooled", false, func() float64 { return float64(get().Discards) }},
			funcMetric{"pool_reaped_total", "Idle connections closed by the reaper", false, func() float64 { return float64(get().Reaped) }},
		)
	}

	if src.PoolReport != nil {
		get := src.PoolReport
		defs = append(defs,
			funcMetric{"pool_in_use", "Connections currently checked out", true, func() float64 { return float64(get().TotalInUse) }},
			funcMetric{"pool_idle", "Idle pooled connections", true, func() float64 { return float64(get().TotalIdle) }},
		)
	}

	for _, d := range defs {
		if d.gauge {
			registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      d.name,
				Help:      d.help,
			}, d.value))
			continue
		}
		registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      d.name,
			Help:      d.help,
		}, d.value))
	}
}
