package pool

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"fastllm-hq/turbine/pkg/engine"
)

// Policy is the behaviour of Checkout when an endpoint has no free slot.
type Policy string

const (
	// PolicyWait blocks until a slot frees or WaitTimeout elapses.
	PolicyWait Policy = "wait"

	// PolicyFailFast fails immediately with a timeout error.
	PolicyFailFast Policy = "fail_fast"
)

// Config contains connection pool configuration.
type Config struct {
	// MaxSize bounds in-use plus idle connections per endpoint.
	MaxSize int

	// Policy selects saturation behaviour.
	Policy Policy

	// WaitTimeout bounds a checkout under PolicyWait.
	WaitTimeout time.Duration

	// IdleTimeout is how long a returned connection may sit idle.
	IdleTimeout time.Duration

	// ReapInterval is how often the background reaper runs.
	// Zero disables the reaper; Reap can still be called directly.
	ReapInterval time.Duration

	// DialTimeout bounds establishing a new connection.
	DialTimeout time.Duration

	// DialRate limits new connections per second across all endpoints.
	// Zero means unlimited.
	DialRate float64

	// DialBurst is the burst allowed above DialRate.
	DialBurst int
}

// EndpointReport describes one endpoint.
type EndpointReport struct {
	InUse   int `json:"in_use"`
	Idle    int `json:"idle"`
	MaxSize int `json:"max_size"`
}

// Report is a point-in-time view of the pool, produced without I/O.
type Report struct {
	Healthy    bool                      `json:"healthy"`
	Open       bool                      `json:"open"`
	Policy     Policy                    `json:"policy"`
	MaxSize    int                       `json:"max_size"`
	TotalInUse int                       `json:"total_in_use"`
	TotalIdle  int                       `json:"total_idle"`
	Endpoints  map[string]EndpointReport `json:"endpoints"`
	Error      string                    `json:"error,omitempty"`
}

// Stats contains cumulative pool counters.
type Stats struct {
	Checkouts uint64 `json:"checkouts"`
	Dials     uint64 `json:"dials"`
	Reuses    uint64 `json:"reuses"`
	Timeouts  uint64 `json:"timeouts"`
	Discards  uint64 `json:"discards"`
	Reaped    uint64 `json:"reaped"`
}

// Option configures a Pool.
type Option func(*Pool)

// WithDialer replaces the default TCP dialer.
func WithDialer(d engine.Dialer) Option {
	return func(p *Pool) {
		p.dialer = d
	}
}

// WithClock replaces time.Now for idle accounting. It is intended for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// WithLogger sets the pool's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithTracer sets the tracer used for checkout spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pool) {
		p.tracer = tracer
	}
}

func defaultTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("turbine/pool")
}
