package metrics

import (
	"net/http"
	"sync"
	"time"

	"fastllm-hq/turbine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry for turbine. It records operation
// timings from substitution adapters, mirrors engine counters through
// func-based collectors, and tracks substitution and feature flag state.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	operations *OperationMetrics
	state      *StateMetrics

	enginesOnce sync.Once

	handlerOnce sync.Once
	handler     http.Handler

	cardinalityLimiter *CardinalityLimiter
}

// MaxOperationLabels bounds distinct (component, operation) label pairs.
const MaxOperationLabels = 256

// NewCollector creates a collector. If registry is nil a fresh registry is
// created. The collector keeps its own copy of cfg with zero-valued fields
// filled from config defaults; cfg itself is not modified.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "turbine",
//		Subsystem: "accel",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(in *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	cfg := &config.MetricsConfig{}
	if in != nil {
		*cfg = *in
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	} else {
		cfg.DurationBuckets = append([]float64(nil), cfg.DurationBuckets...)
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		operations:         NewOperationMetrics(cfg, registry),
		state:              NewStateMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(MaxOperationLabels),
	}
}

// RecordOperation records one accelerated operation.
//
// Parameters:
//   - component: engine name (e.g., "rate_limiter")
//   - operation: operation name (e.g., "check_rate_limit")
//   - duration: wall time of the call
//   - success: false if the call returned an error
func (c *Collector) RecordOperation(component, operation string, duration time.Duration, success bool) {
	if !c.config.Enabled {
		return
	}

	if !c.cardinalityLimiter.Allow(component + "/" + operation) {
		operation = "other"
	}
	c.operations.Record(component, operation, duration, success)
}

// SetSubstitutionActive marks a host call site as bound or unbound.
func (c *Collector) SetSubstitutionActive(site string, active bool) {
	if !c.config.Enabled {
		return
	}
	c.state.SetSite(site, active)
}

// SetFeature mirrors a feature flag value.
func (c *Collector) SetFeature(name string, enabled bool) {
	if !c.config.Enabled {
		return
	}
	c.state.SetFeature(name, enabled)
}

// SetComponentHealth records the latest health check result for a component.
func (c *Collector) SetComponentHealth(component string, healthy bool) {
	if !c.config.Enabled {
		return
	}
	c.state.SetHealth(component, healthy)
}

// RegisterEngines registers func-based collectors reading src. Only the
// first call has an effect; later calls are ignored so a registry never
// sees duplicate descriptors.
func (c *Collector) RegisterEngines(src Sources) {
	if !c.config.Enabled {
		return
	}
	c.enginesOnce.Do(func() {
		registerEngineMetrics(c.config, c.registry, src)
	})
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Enabled reports whether metrics collection is active.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

// Reset forgets every admitted label set.
func (cl *CardinalityLimiter) Reset() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.current = make(map[string]struct{})
}
