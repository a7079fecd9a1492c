package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fastllm-hq/turbine/pkg/accel"
	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/features"
	"fastllm-hq/turbine/pkg/substitution"
	"fastllm-hq/turbine/pkg/telemetry/health"
	"fastllm-hq/turbine/pkg/telemetry/metrics"
)

// FacadeComponent is the component name of the facade itself in health
// reports.
const FacadeComponent = "facade"

// OtherOperation absorbs operations recorded after the cardinality cap is
// reached.
const OtherOperation = "other"

// ComponentHealth is the health of one component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Loaded  bool   `json:"loaded"`
	Error   string `json:"error,omitempty"`

	// LatencyMs is how long the check took.
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

// HealthReport is the result of a full health check.
type HealthReport struct {
	// OverallHealthy is true when acceleration is available and every
	// loaded engine passed its check.
	OverallHealthy bool `json:"overall_healthy"`

	// AccelerationAvailable mirrors the facade's IsAvailable.
	AccelerationAvailable bool `json:"acceleration_available"`

	// Error explains why acceleration is unavailable.
	Error string `json:"error,omitempty"`

	// Components holds one entry per engine plus the facade.
	Components map[string]ComponentHealth `json:"components"`

	// Bindings lists the currently bound host sites.
	Bindings []substitution.Binding `json:"bindings,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// OperationStats summarizes the recorded calls of one operation.
type OperationStats struct {
	Count         int64   `json:"count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	SuccessRate   float64 `json:"success_rate"`
}

// PerformanceStats is the aggregate of every recorded operation, keyed by
// component and then operation.
type PerformanceStats struct {
	AccelerationAvailable bool                                 `json:"acceleration_available"`
	Error                 string                               `json:"error,omitempty"`
	Operations            map[string]map[string]OperationStats `json:"operations"`
}

// BindingSource reports the current binding record.
type BindingSource interface {
	Bindings() []substitution.Binding
}

type opKey struct {
	component string
	operation string
}

type opAccum struct {
	count     int64
	successes int64
	totalMs   float64
}

// Diagnostics reports engine health and aggregates operation timings.
// It is safe for concurrent use. HealthCheck never panics and never
// returns an error; failures are reported inside the report.
type Diagnostics struct {
	facade    *accel.Facade
	checker   *health.Checker
	bindings  BindingSource
	collector *metrics.Collector
	flags     accel.FlagSource
	logger    *slog.Logger
	now       func() time.Time

	limiter *metrics.CardinalityLimiter

	mu  sync.Mutex
	ops map[opKey]*opAccum
}

// Option configures Diagnostics.
type Option func(*Diagnostics)

// WithBindings sets the source of the binding record shown in reports.
func WithBindings(src BindingSource) Option {
	return func(d *Diagnostics) { d.bindings = src }
}

// WithCollector mirrors health results and recorded operations into
// Prometheus.
func WithCollector(c *metrics.Collector) Option {
	return func(d *Diagnostics) { d.collector = c }
}

// WithFlags sets the feature flag source gating performance tracking.
func WithFlags(flags accel.FlagSource) Option {
	return func(d *Diagnostics) { d.flags = flags }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Diagnostics) { d.logger = logger }
}

// New creates diagnostics over the facade. Zero fields of cfg take their
// defaults.
func New(facade *accel.Facade, cfg config.DiagnosticsConfig, opts ...Option) *Diagnostics {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = config.DefaultCheckTimeout
	}
	if cfg.MaxOperations <= 0 {
		cfg.MaxOperations = config.DefaultMaxOperations
	}

	d := &Diagnostics{
		facade:  facade,
		checker: health.New(cfg.CheckTimeout),
		logger:  slog.Default().With("component", "diagnostics"),
		now:     time.Now,
		limiter: metrics.NewCardinalityLimiter(cfg.MaxOperations),
		ops:     make(map[opKey]*opAccum),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, name := range engine.Names {
		if e, err := facade.Engine(name); err == nil {
			d.checker.RegisterCheck(name, e.HealthCheck)
		}
	}
	return d
}

// Checker returns the underlying check registry. The server uses it for
// liveness and readiness.
func (d *Diagnostics) Checker() *health.Checker {
	return d.checker
}

// HealthCheck checks every engine and returns the combined report.
func (d *Diagnostics) HealthCheck(ctx context.Context) (report HealthReport) {
	report = HealthReport{
		Components: make(map[string]ComponentHealth, len(engine.Names)+1),
		Timestamp:  d.now(),
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("health check panicked", "panic", r)
			report.OverallHealthy = false
			report.Error = fmt.Sprintf("health check panicked: %v", r)
		}
	}()

	available := d.facade.IsAvailable()
	report.AccelerationAvailable = available
	if !available {
		report.Error = d.facade.Unavailable()
	}
	report.Components[FacadeComponent] = ComponentHealth{
		Healthy: available,
		Loaded:  true,
		Error:   report.Error,
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, name := range engine.Names {
		c, _ := d.facade.Capability(name)
		if !c.Loaded {
			report.Components[name] = ComponentHealth{
				Error: fmt.Sprintf("%s not loaded: %s", name, c.Reason),
			}
			continue
		}

		g.Go(func() error {
			res := d.checker.Run(ctx, name)
			ch := ComponentHealth{
				Healthy:   res.Healthy(),
				Loaded:    true,
				Error:     res.Message,
				LatencyMs: float64(res.Duration) / float64(time.Millisecond),
			}
			mu.Lock()
			report.Components[name] = ch
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.OverallHealthy = available
	for name, ch := range report.Components {
		if ch.Loaded && !ch.Healthy {
			report.OverallHealthy = false
		}
		if d.collector != nil {
			d.collector.SetComponentHealth(name, ch.Healthy)
		}
	}

	if d.bindings != nil {
		report.Bindings = d.bindings.Bindings()
	}
	return report
}

// RecordPerformance records one call. Negative and non-finite durations
// count as zero.
// It does nothing while performance_tracking is disabled.
func (d *Diagnostics) RecordPerformance(component, operation string, durationMs float64, success bool) {
	if d.flags != nil && !d.flags.IsEnabled(features.PerformanceTracking) {
		return
	}
	if durationMs < 0 || math.IsNaN(durationMs) || math.IsInf(durationMs, 0) {
		durationMs = 0
	}

	if !d.limiter.Allow(component + "/" + operation) {
		operation = OtherOperation
	}

	d.mu.Lock()
	key := opKey{component, operation}
	acc, ok := d.ops[key]
	if !ok {
		acc = &opAccum{}
		d.ops[key] = acc
	}
	acc.count++
	acc.totalMs += durationMs
	if success {
		acc.successes++
	}
	d.mu.Unlock()

	if d.collector != nil {
		d.collector.RecordOperation(component, operation,
			time.Duration(durationMs*float64(time.Millisecond)), success)
	}
}

// GetPerformanceStats returns the aggregate of every recorded call. With
// nothing recorded, Operations is empty, not nil.
func (d *Diagnostics) GetPerformanceStats() PerformanceStats {
	stats := PerformanceStats{
		AccelerationAvailable: d.facade.IsAvailable(),
		Operations:            make(map[string]map[string]OperationStats),
	}
	if !stats.AccelerationAvailable {
		stats.Error = d.facade.Unavailable()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for key, acc := range d.ops {
		byOp, ok := stats.Operations[key.component]
		if !ok {
			byOp = make(map[string]OperationStats)
			stats.Operations[key.component] = byOp
		}
		byOp[key.operation] = OperationStats{
			Count:         acc.count,
			AvgDurationMs: acc.totalMs / float64(acc.count),
			SuccessRate:   float64(acc.successes) / float64(acc.count),
		}
	}
	return stats
}

// Reset discards every recorded operation.
func (d *Diagnostics) Reset() {
	d.mu.Lock()
	d.ops = make(map[opKey]*opAccum)
	d.mu.Unlock()
	d.limiter.Reset()
}
