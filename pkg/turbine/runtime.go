package turbine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fastllm-hq/turbine/pkg/accel"
	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/diagnostics"
	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/engine/pool"
	"fastllm-hq/turbine/pkg/engine/ratelimit"
	"fastllm-hq/turbine/pkg/engine/tokens"
	"fastllm-hq/turbine/pkg/features"
	"fastllm-hq/turbine/pkg/host"
	"fastllm-hq/turbine/pkg/substitution"
	"fastllm-hq/turbine/pkg/telemetry/metrics"
	"fastllm-hq/turbine/pkg/telemetry/tracing"
)

// Runtime owns one complete acceleration stack: the host call sites, the
// engines, the substitution controller and diagnostics. Runtimes are
// independent of each other.
type Runtime struct {
	config     *config.Config
	logger     *slog.Logger
	flags      *features.Registry
	hooks      *host.Hooks
	facade     *accel.Facade
	controller *substitution.Controller
	diag       *diagnostics.Diagnostics
	collector  *metrics.Collector
	tracer     *tracing.Tracer

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	dialer    engine.Dialer
	flags     *features.Registry
	collector *metrics.Collector
	tracer    *tracing.Tracer
	builders  map[string]accel.Builder
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDialer sets the dialer used by both the default connector and the
// connection pool.
func WithDialer(d engine.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithFeatures uses an existing flag registry instead of building one from
// configuration.
func WithFeatures(r *features.Registry) Option {
	return func(o *options) { o.flags = r }
}

// WithCollector uses an existing metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithTracer sets the tracer for substitution and pool spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithEngineBuilder replaces the constructor of one engine.
func WithEngineBuilder(name string, b accel.Builder) Option {
	return func(o *options) {
		if o.builders == nil {
			o.builders = make(map[string]accel.Builder)
		}
		o.builders[name] = b
	}
}

// New builds a runtime from cfg. A nil cfg uses the defaults. The
// configuration is validated first; a feature file named in it must load.
// When accel.auto_apply is set and acceleration is available, the host
// sites are bound before New returns.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.dialer == nil {
		o.dialer = &pool.TCPDialer{Timeout: cfg.Engines.Pool.DialTimeout}
	}
	if o.tracer == nil {
		o.tracer = tracing.Noop()
	}

	r := &Runtime{
		config: cfg,
		logger: o.logger.With("component", "turbine"),
		tracer: o.tracer,
	}

	r.flags = o.flags
	if r.flags == nil {
		r.flags = features.New(cfg.Features.Flags, features.WithLogger(o.logger.With("component", "features")))
		if cfg.Features.File != "" {
			if err := r.flags.Load(cfg.Features.File); err != nil {
				return nil, fmt.Errorf("failed to load feature file: %w", err)
			}
		}
	}

	r.collector = o.collector
	if r.collector == nil {
		r.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	r.hooks = host.NewHooks(host.Defaults{
		Tokens:    host.NewEstimateCounter(cfg.Engines.Tokens.Models),
		RateLimit: host.NewLogLimiter(),
		Connect:   host.NewDirectConnector(o.dialer),
	})

	facadeOpts := []accel.Option{
		accel.WithLogger(o.logger.With("component", "accel")),
		accel.WithDialer(o.dialer),
		accel.WithTracer(o.tracer.Tracer()),
	}
	for name, b := range o.builders {
		facadeOpts = append(facadeOpts, accel.WithBuilder(name, b))
	}
	r.facade = accel.Load(cfg, r.flags, facadeOpts...)

	r.diag = diagnostics.New(r.facade, cfg.Diagnostics,
		diagnostics.WithBindings(r),
		diagnostics.WithCollector(r.collector),
		diagnostics.WithFlags(r.flags),
		diagnostics.WithLogger(o.logger.With("component", "diagnostics")),
	)

	r.controller = substitution.New(r.hooks, r.facade,
		substitution.WithFlags(r.flags),
		substitution.WithRecorder(r.diag),
		substitution.WithObserver(r.collector),
		substitution.WithCheckTimeout(cfg.Diagnostics.CheckTimeout),
		substitution.WithTracer(o.tracer),
		substitution.WithLogger(o.logger.With("component", "substitution")),
	)

	r.collector.RegisterEngines(r.engineSources())
	r.syncFeatureMetrics()

	if cfg.Accel.AutoApply {
		if r.facade.IsAvailable() {
			r.controller.Apply(context.Background())
		} else {
			r.logger.Warn("acceleration not available, running host defaults",
				"reason", r.facade.Unavailable())
		}
	}

	return r, nil
}

// engineSources reads engine stats for the metrics collector.
func (r *Runtime) engineSources() metrics.Sources {
	var src metrics.Sources
	if c, err := r.facade.TokenCounter(); err == nil {
		src.Tokens = func() tokens.Stats { return c.Stats() }
	}
	if l, err := r.facade.RateLimiter(); err == nil {
		src.RateLimit = func() ratelimit.Stats { return l.Stats() }
	}
	if p, err := r.facade.Pool(); err == nil {
		src.Pool = func() pool.Stats { return p.Stats() }
		src.PoolReport = func() pool.Report { return p.Health() }
	}
	return src
}

func (r *Runtime) syncFeatureMetrics() map[string]bool {
	status := r.flags.Status()
	for name, enabled := range status {
		r.collector.SetFeature(name, enabled)
	}
	return status
}

// CountTokens counts tokens through the host call site.
func (r *Runtime) CountTokens(text, model string) (int, error) {
	return r.hooks.CountTokens(text, model)
}

// CheckRateLimit admits or rejects one call for key through the host call
// site.
func (r *Runtime) CheckRateLimit(key string, limit, windowSeconds int) (bool, error) {
	return r.hooks.CheckRateLimit(key, limit, windowSeconds)
}

// Checkout checks out a connection to endpoint through the host call site.
func (r *Runtime) Checkout(ctx context.Context, endpoint string) (engine.Handle, error) {
	return r.hooks.Checkout(ctx, endpoint)
}

// ConnectionPoolHealthCheck reports the pool's state. When the pool is not
// loaded the report is unhealthy and Error carries the reason.
func (r *Runtime) ConnectionPoolHealthCheck() pool.Report {
	p, err := r.facade.Pool()
	if err != nil {
		return pool.Report{Error: err.Error()}
	}
	return p.Health()
}

// IsAvailable reports whether acceleration is available.
func (r *Runtime) IsAvailable() bool {
	return r.facade.IsAvailable()
}

// ApplyAcceleration binds every healthy engine to its host call site.
func (r *Runtime) ApplyAcceleration(ctx context.Context) bool {
	return r.controller.Apply(ctx)
}

// RemoveAcceleration restores every host call site.
func (r *Runtime) RemoveAcceleration(ctx context.Context) {
	r.controller.Remove(ctx)
}

// HealthCheck returns the full health report.
func (r *Runtime) HealthCheck(ctx context.Context) diagnostics.HealthReport {
	return r.diag.HealthCheck(ctx)
}

// GetPerformanceStats returns the aggregated operation timings.
func (r *Runtime) GetPerformanceStats() diagnostics.PerformanceStats {
	return r.diag.GetPerformanceStats()
}

// RecordPerformance records one operation timing.
func (r *Runtime) RecordPerformance(component, operation string, durationMs float64, success bool) {
	r.diag.RecordPerformance(component, operation, durationMs, success)
}

// GetFeatureStatus returns every flag's effective value.
func (r *Runtime) GetFeatureStatus() map[string]bool {
	return r.syncFeatureMetrics()
}

// IsEnabled reports whether a feature flag is enabled. Unknown flags are
// disabled.
func (r *Runtime) IsEnabled(name string) bool {
	return r.flags.IsEnabled(name)
}

// WatchFeatures reloads the configured feature file on change until ctx is
// cancelled. It returns immediately when no file or watching is configured.
func (r *Runtime) WatchFeatures(ctx context.Context) error {
	if r.config.Features.File == "" || !r.config.Features.Watch {
		return nil
	}
	return r.flags.Watch(ctx, r.config.Features.File)
}

// Bindings returns the current binding record.
func (r *Runtime) Bindings() []substitution.Binding {
	if r.controller == nil {
		return nil
	}
	return r.controller.Bindings()
}

// Config returns the configuration the runtime was built from.
func (r *Runtime) Config() *config.Config { return r.config }

// Host returns the host call sites.
func (r *Runtime) Host() *host.Hooks { return r.hooks }

// Facade returns the engine facade.
func (r *Runtime) Facade() *accel.Facade { return r.facade }

// Controller returns the substitution controller.
func (r *Runtime) Controller() *substitution.Controller { return r.controller }

// Diagnostics returns the diagnostics component.
func (r *Runtime) Diagnostics() *diagnostics.Diagnostics { return r.diag }

// Features returns the feature flag registry.
func (r *Runtime) Features() *features.Registry { return r.flags }

// Metrics returns the metrics collector.
func (r *Runtime) Metrics() *metrics.Collector { return r.collector }

// Close restores the host call sites and closes the engines. It is safe to
// call more than once.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.controller.Remove(context.Background())
		r.closeErr = r.facade.Close()
	})
	return r.closeErr
}
