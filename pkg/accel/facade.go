package accel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/engine/pool"
	"fastllm-hq/turbine/pkg/engine/ratelimit"
	"fastllm-hq/turbine/pkg/engine/tokens"
)

const opLoad = "load"

// Capability records whether an engine loaded and, if not, why.
type Capability struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	Reason string `json:"reason,omitempty"`
}

// FlagSource reports feature flag values.
type FlagSource interface {
	IsEnabled(name string) bool
}

// Facade holds the engines that loaded at startup. Loading is attempted
// exactly once per Facade; a failed engine never affects its siblings.
type Facade struct {
	logger   *slog.Logger
	required []string

	counter *tokens.Counter
	limiter *ratelimit.Limiter
	pool    *pool.Pool

	caps map[string]Capability

	closeOnce sync.Once
	closeErr  error
}

// Builder constructs one engine.
type Builder func() (engine.Engine, error)

// Option configures Load.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	dialer   engine.Dialer
	tracer   trace.Tracer
	builders map[string]Builder
}

// WithLogger sets the logger used for load results.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDialer sets the dialer handed to the connection pool.
func WithDialer(d engine.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithTracer sets the tracer handed to the connection pool.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithBuilder replaces the constructor for one engine. The builder must
// return the engine type the facade expects for name.
func WithBuilder(name string, b Builder) Option {
	return func(o *options) { o.builders[name] = b }
}

// Load attempts to construct every engine once. An engine whose feature
// flag is off, whose configuration is invalid, or whose constructor
// panics is recorded as not loaded. A nil flags source enables every engine.
func Load(cfg *config.Config, flags FlagSource, opts ...Option) *Facade {
	o := options{
		logger:   slog.Default().With("component", "accel"),
		builders: make(map[string]Builder),
	}
	for _, opt := range opts {
		opt(&o)
	}

	defaults := defaultBuilders(&cfg.Engines, &o)
	for name, b := range defaults {
		if _, ok := o.builders[name]; !ok {
			o.builders[name] = b
		}
	}

	f := &Facade{
		logger:   o.logger,
		required: append([]string(nil), cfg.Accel.RequiredEngines...),
		caps:     make(map[string]Capability, len(engine.Names)),
	}

	for _, name := range engine.Names {
		if flags != nil && !flags.IsEnabled(name) {
			f.caps[name] = Capability{Name: name, Reason: "disabled by feature flag"}
			f.logger.Info("engine disabled", "engine", name)
			continue
		}

		built, err := build(o.builders[name])
		if err == nil {
			err = f.bind(name, built)
		}
		if err != nil {
			f.caps[name] = Capability{Name: name, Reason: err.Error()}
			f.logger.Warn("engine failed to load", "engine", name, "error", err)
			continue
		}

		f.caps[name] = Capability{Name: name, Loaded: true}
		f.logger.Debug("engine loaded", "engine", name)
	}

	return f
}

func defaultBuilders(cfg *config.EnginesConfig, o *options) map[string]Builder {
	return map[string]Builder{
		engine.TokenCounter: func() (engine.Engine, error) {
			return tokens.New(tokens.Config{
				Capacity: cfg.Tokens.CacheSize,
				Models:   cfg.Tokens.Models,
			})
		},
		engine.RateLimiter: func() (engine.Engine, error) {
			return ratelimit.New(ratelimit.Config{
				Shards:     cfg.RateLimit.Shards,
				SweepEvery: cfg.RateLimit.SweepEvery,
			})
		},
		engine.ConnectionPool: func() (engine.Engine, error) {
			var popts []pool.Option
			if o.dialer != nil {
				popts = append(popts, pool.WithDialer(o.dialer))
			}
			if o.tracer != nil {
				popts = append(popts, pool.WithTracer(o.tracer))
			}
			popts = append(popts, pool.WithLogger(o.logger.With("engine", engine.ConnectionPool)))
			return pool.New(PoolConfig(cfg.Pool), popts...)
		},
	}
}

// PoolConfig converts the pool section of the configuration.
func PoolConfig(cfg config.PoolConfig) pool.Config {
	return pool.Config{
		MaxSize:      cfg.MaxSize,
		Policy:       pool.Policy(cfg.Policy),
		WaitTimeout:  cfg.WaitTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ReapInterval: cfg.ReapInterval,
		DialTimeout:  cfg.DialTimeout,
		DialRate:     cfg.DialRate,
		DialBurst:    cfg.DialBurst,
	}
}

// build runs b, converting a panic into an error.
func build(b Builder) (e engine.Engine, err error) {
	if b == nil {
		return nil, errors.New("no constructor")
	}
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = fmt.Errorf("construction panicked: %v", r)
		}
	}()

	e, err = b()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if e == nil {
		return nil, errors.New("constructor returned no engine")
	}
	return e, nil
}

// bind stores e in its typed slot. A typed nil pointer is rejected so a
// Loaded capability always has a usable engine behind it.
func (f *Facade) bind(name string, e engine.Engine) error {
	var ok, isNil bool
	switch name {
	case engine.TokenCounter:
		var c *tokens.Counter
		c, ok = e.(*tokens.Counter)
		if isNil = c == nil; ok && !isNil {
			f.counter = c
		}
	case engine.RateLimiter:
		var l *ratelimit.Limiter
		l, ok = e.(*ratelimit.Limiter)
		if isNil = l == nil; ok && !isNil {
			f.limiter = l
		}
	case engine.ConnectionPool:
		var p *pool.Pool
		p, ok = e.(*pool.Pool)
		if isNil = p == nil; ok && !isNil {
			f.pool = p
		}
	}
	if !ok {
		return fmt.Errorf("unexpected engine type %T", e)
	}
	if isNil {
		return errors.New("constructor returned no engine")
	}
	return nil
}

// IsAvailable reports whether acceleration can be used. With required
// engines configured, every one of them must have loaded; otherwise at
// least one engine must have loaded.
func (f *Facade) IsAvailable() bool {
	if len(f.required) > 0 {
		for _, name := range f.required {
			if !f.caps[name].Loaded {
				return false
			}
		}
		return true
	}

	for _, c := range f.caps {
		if c.Loaded {
			return true
		}
	}
	return false
}

// Capabilities returns a copy of every engine's load result, in binding
// order.
func (f *Facade) Capabilities() []Capability {
	out := make([]Capability, 0, len(engine.Names))
	for _, name := range engine.Names {
		out = append(out, f.caps[name])
	}
	return out
}

// Capability returns the load result for one engine.
func (f *Facade) Capability(name string) (Capability, bool) {
	c, ok := f.caps[name]
	return c, ok
}

// Unavailable describes why acceleration as a whole is unavailable, or
// returns "" when it is available.
func (f *Facade) Unavailable() string {
	if f.IsAvailable() {
		return ""
	}
	if len(f.required) > 0 {
		for _, name := range f.required {
			if c := f.caps[name]; !c.Loaded {
				return fmt.Sprintf("required engine %s not loaded: %s", name, c.Reason)
			}
		}
	}
	return "no acceleration engines loaded"
}

// Engine returns the loaded engine called name.
func (f *Facade) Engine(name string) (engine.Engine, error) {
	var e engine.Engine
	switch name {
	case engine.TokenCounter:
		if f.counter != nil {
			e = f.counter
		}
	case engine.RateLimiter:
		if f.limiter != nil {
			e = f.limiter
		}
	case engine.ConnectionPool:
		if f.pool != nil {
			e = f.pool
		}
	default:
		return nil, engine.Unavailable(name, opLoad, "unknown engine")
	}
	if e == nil {
		return nil, f.unavailable(name)
	}
	return e, nil
}

// TokenCounter returns the token counter or an Unavailable error.
func (f *Facade) TokenCounter() (*tokens.Counter, error) {
	if f.counter == nil {
		return nil, f.unavailable(engine.TokenCounter)
	}
	return f.counter, nil
}

// RateLimiter returns the rate limiter or an Unavailable error.
func (f *Facade) RateLimiter() (*ratelimit.Limiter, error) {
	if f.limiter == nil {
		return nil, f.unavailable(engine.RateLimiter)
	}
	return f.limiter, nil
}

// Pool returns the connection pool or an Unavailable error.
func (f *Facade) Pool() (*pool.Pool, error) {
	if f.pool == nil {
		return nil, f.unavailable(engine.ConnectionPool)
	}
	return f.pool, nil
}

func (f *Facade) unavailable(name string) error {
	return engine.Unavailable(name, opLoad, "not loaded: "+f.caps[name].Reason)
}

// Close releases engine resources. It is safe to call more than once.
func (f *Facade) Close() error {
	f.closeOnce.Do(func() {
		if f.pool != nil {
			f.closeErr = f.pool.Close()
		}
	})
	return f.closeErr
}
