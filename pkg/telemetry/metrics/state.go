package metrics

import (
	"fastllm-hq/turbine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StateMetrics mirrors substitution, feature flag and health state.
//
// Metrics:
//   - turbine_accel_substitution_active: 1 if a host site is bound to an engine
//   - turbine_accel_feature_enabled: 1 if a feature flag is on
//   - turbine_accel_component_healthy: 1 if the last check passed
type StateMetrics struct {
	siteActive       *prometheus.GaugeVec
	featureEnabled   *prometheus.GaugeVec
	componentHealthy *prometheus.GaugeVec
}

// NewStateMetrics creates and registers state gauges.
func NewStateMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StateMetrics {
	sm := &StateMetrics{
		siteActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "substitution_active",
				Help:      "Whether a host call site is bound to an accelerated engine (1=bound, 0=default)",
			},
			[]string{"site"},
		),

		featureEnabled: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "feature_enabled",
				Help:      "Feature flag value (1=enabled, 0=disabled)",
			},
			[]string{"feature"},
		),

		componentHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "component_healthy",
				Help:      "Result of the latest component health check (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),
	}

	registry.MustRegister(sm.siteActive, sm.featureEnabled, sm.componentHealthy)

	return sm
}

// SetSite records whether site is bound.
func (sm *StateMetrics) SetSite(site string, active bool) {
	sm.siteActive.WithLabelValues(site).Set(boolToFloat(active))
}

// SetFeature records a feature flag value.
func (sm *StateMetrics) SetFeature(name string, enabled bool) {
	sm.featureEnabled.WithLabelValues(name).Set(boolToFloat(enabled))
}

// SetHealth records a component check result.
func (sm *StateMetrics) SetHealth(component string, healthy bool) {
	sm.componentHealthy.WithLabelValues(component).Set(boolToFloat(healthy))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
