package substitution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fastllm-hq/turbine/pkg/accel"
	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/engine/pool"
	"fastllm-hq/turbine/pkg/engine/ratelimit"
	"fastllm-hq/turbine/pkg/engine/tokens"
	"fastllm-hq/turbine/pkg/features"
	"fastllm-hq/turbine/pkg/host"
	"fastllm-hq/turbine/pkg/telemetry/health"
	"fastllm-hq/turbine/pkg/telemetry/logging"
	"fastllm-hq/turbine/pkg/telemetry/tracing"
)

// State is the controller state.
type State string

const (
	// Unapplied means every host site runs its default strategy.
	Unapplied State = "UNAPPLIED"

	// Applied means at least one host site is bound to an engine.
	Applied State = "APPLIED"
)

// DefaultCheckTimeout bounds the pre-bind health check of each engine.
const DefaultCheckTimeout = 2 * time.Second

// Binding records one rebound host site.
type Binding struct {
	// Site is the host call site name.
	Site string `json:"site"`

	// Component is the engine now serving the site.
	Component string `json:"component"`

	// BoundAt is when the site was rebound.
	BoundAt time.Time `json:"bound_at"`

	// Previous is the exact strategy that was installed before binding.
	Previous any `json:"-"`

	restore func()
}

// SiteObserver is notified when a site is bound or restored.
type SiteObserver interface {
	SetSubstitutionActive(site string, active bool)
}

// Controller swaps host call sites to accelerated engines and back.
// Apply and Remove are serialized by a single mutex; host calls never
// take it.
type Controller struct {
	hooks    *host.Hooks
	facade   *accel.Facade
	flags    accel.FlagSource
	recorder Recorder
	observer SiteObserver
	checker  *health.Checker
	tracer   *tracing.Tracer
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	bindings []Binding
}

// Option configures a Controller.
type Option func(*Controller)

// WithFlags sets the feature flag source. Without it substitution is
// always permitted.
func WithFlags(flags accel.FlagSource) Option {
	return func(c *Controller) { c.flags = flags }
}

// WithRecorder sets the recorder the adapters report timings to.
func WithRecorder(rec Recorder) Option {
	return func(c *Controller) { c.recorder = rec }
}

// WithObserver sets the observer notified of bound and restored sites.
func WithObserver(obs SiteObserver) Option {
	return func(c *Controller) { c.observer = obs }
}

// WithCheckTimeout bounds each engine's pre-bind health check.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Controller) { c.checker = health.New(d) }
}

// WithTracer sets the tracer for apply and remove spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a controller for the given host hooks and engines.
// Controllers are independent; each owns its own binding record.
func New(hooks *host.Hooks, facade *accel.Facade, opts ...Option) *Controller {
	c := &Controller{
		hooks:   hooks,
		facade:  facade,
		checker: health.New(DefaultCheckTimeout),
		tracer:  tracing.Noop(),
		logger:  slog.Default().With("component", "substitution"),
		now:     time.Now,
		state:   Unapplied,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply binds every loaded, healthy engine to its host site. It returns
// true if at least one site was bound. Calling Apply while applied
// returns true without rebinding anything.
func (c *Controller) Apply(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Applied {
		return true
	}

	ctx, span := c.tracer.Start(ctx, "substitution.apply")
	defer span.End()
	ctx = logContext(ctx, "apply")

	if c.flags != nil && !c.flags.IsEnabled(features.Substitution) {
		c.logger.InfoContext(ctx, "substitution disabled by feature flag")
		tracing.SetSubstitutionAttributes(span, false, nil)
		return false
	}

	var bound []Binding
	for _, name := range engine.Names {
		ectx := logging.WithEngine(ctx, name)

		e, err := c.facade.Engine(name)
		if err != nil {
			tracing.SetSkipAttributes(span, name, err.Error())
			c.logger.DebugContext(ectx, "engine not bound", "reason", err)
			continue
		}

		if res := c.checker.Execute(ectx, e.HealthCheck); !res.Healthy() {
			tracing.SetSkipAttributes(span, name, res.Message)
			c.logger.WarnContext(ectx, "engine failed pre-bind health check", "error", res.Message)
			continue
		}

		b, err := c.bind(name, e)
		if err != nil {
			tracing.SetSkipAttributes(span, name, err.Error())
			c.logger.WarnContext(ectx, "engine not bound", "error", err)
			continue
		}
		bound = append(bound, b)
	}

	if len(bound) == 0 {
		c.logger.WarnContext(ctx, "acceleration not applied: no engine could be bound")
		tracing.SetSubstitutionAttributes(span, false, nil)
		return false
	}

	c.bindings = bound
	c.state = Applied

	sites := make([]string, len(bound))
	for i, b := range bound {
		sites[i] = b.Site
		c.notify(b.Site, true)
	}
	tracing.SetSubstitutionAttributes(span, true, sites)
	c.logger.InfoContext(ctx, "acceleration applied", "sites", sites)

	return true
}

// logContext tags ctx with the controller operation and, for a recording
// span, its trace ID.
func logContext(ctx context.Context, op string) context.Context {
	ctx = logging.WithOperation(ctx, op)
	if id := tracing.TraceID(ctx); id != "" {
		ctx = logging.WithTraceID(ctx, id)
	}
	return ctx
}

// bind swaps the host site for name and returns the binding record.
func (c *Controller) bind(name string, e engine.Engine) (Binding, error) {
	b := Binding{Component: name, BoundAt: c.now()}

	switch eng := e.(type) {
	case *tokens.Counter:
		site := c.hooks.Tokens
		prev := site.Swap(&tokenAdapter{counter: eng, rec: c.recorder})
		b.Site, b.Previous = site.Name(), prev
		b.restore = func() { site.Swap(prev) }

	case *ratelimit.Limiter:
		site := c.hooks.RateLimit
		prev := site.Swap(&limiterAdapter{limiter: eng, rec: c.recorder})
		b.Site, b.Previous = site.Name(), prev
		b.restore = func() { site.Swap(prev) }

	case *pool.Pool:
		site := c.hooks.Connect
		prev := site.Swap(&poolAdapter{pool: eng, rec: c.recorder})
		b.Site, b.Previous = site.Name(), prev
		b.restore = func() { site.Swap(prev) }

	default:
		return Binding{}, fmt.Errorf("no host site for engine type %T", e)
	}

	return b, nil
}

// Remove restores every bound site to the exact strategy it held before
// Apply. It is a no-op when nothing is applied.
func (c *Controller) Remove(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Unapplied {
		return
	}

	ctx, span := c.tracer.Start(ctx, "substitution.remove")
	defer span.End()
	ctx = logContext(ctx, "remove")

	for i := len(c.bindings) - 1; i >= 0; i-- {
		b := c.bindings[i]
		b.restore()
		c.notify(b.Site, false)
	}

	c.logger.InfoContext(ctx, "acceleration removed", "sites", len(c.bindings))
	c.bindings = nil
	c.state = Unapplied
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Bindings returns a copy of the current binding record.
func (c *Controller) Bindings() []Binding {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Binding, len(c.bindings))
	copy(out, c.bindings)
	return out
}

func (c *Controller) notify(site string, active bool) {
	if c.observer != nil {
		c.observer.SetSubstitutionActive(site, active)
	}
}
