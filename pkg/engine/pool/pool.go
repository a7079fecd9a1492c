package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/telemetry/logging"
	"fastllm-hq/turbine/pkg/telemetry/tracing"
)

const (
	opCheckout = "checkout"
	opRelease  = "release"
	opHealth   = "health_check"
	opNew      = "new"
)

// Pool hands out connections per endpoint.
//
// Each endpoint has MaxSize slots held in a weighted semaphore. A checkout
// holds one slot until the lease is released or discarded. New connections
// are dialed only when the endpoint has no idle connection, so in-use plus
// idle never exceeds MaxSize.
type Pool struct {
	cfg         Config
	dialer      engine.Dialer
	dialLimiter *rate.Limiter
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time

	mu        sync.Mutex
	endpoints map[string]*endpointState
	closed    bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	checkouts atomic.Uint64
	dials     atomic.Uint64
	reuses    atomic.Uint64
	timeouts  atomic.Uint64
	discards  atomic.Uint64
	reaped    atomic.Uint64
}

type endpointState struct {
	slots *semaphore.Weighted

	mu    sync.Mutex
	idle  []idleConn // most recently returned last
	inUse int
}

type idleConn struct {
	conn     engine.Conn
	lastUsed time.Time
}

// New creates a connection pool and starts its reaper.
func New(cfg Config, opts ...Option) (*Pool, error) {
	if cfg.MaxSize < 1 {
		return nil, engine.InvalidArgument(engine.ConnectionPool, opNew,
			fmt.Sprintf("max size must be positive, got %d", cfg.MaxSize))
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyWait
	}
	if cfg.Policy != PolicyWait && cfg.Policy != PolicyFailFast {
		return nil, engine.InvalidArgument(engine.ConnectionPool, opNew,
			fmt.Sprintf("unknown policy %q", cfg.Policy))
	}
	if cfg.IdleTimeout <= 0 {
		return nil, engine.InvalidArgument(engine.ConnectionPool, opNew,
			fmt.Sprintf("idle timeout must be positive, got %v", cfg.IdleTimeout))
	}

	p := &Pool{
		cfg:       cfg,
		logger:    slog.Default().With("component", engine.ConnectionPool),
		tracer:    defaultTracer(),
		now:       time.Now,
		endpoints: make(map[string]*endpointState),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dialer == nil {
		p.dialer = &TCPDialer{Timeout: cfg.DialTimeout}
	}
	if cfg.DialRate > 0 {
		burst := cfg.DialBurst
		if burst < 1 {
			burst = 1
		}
		p.dialLimiter = rate.NewLimiter(rate.Limit(cfg.DialRate), burst)
	}

	if cfg.ReapInterval > 0 {
		go p.reapLoop(cfg.ReapInterval)
	} else {
		close(p.done)
	}

	return p, nil
}

// Name returns the component name.
func (p *Pool) Name() string {
	return engine.ConnectionPool
}

// Checkout returns a connection to endpoint, reusing an idle one when
// possible. It blocks only as the saturation policy allows and returns
// ctx.Err() if ctx ends first.
func (p *Pool) Checkout(ctx context.Context, endpoint string) (*Lease, error) {
	ctx, span := p.tracer.Start(ctx, "pool.checkout",
		trace.WithAttributes(attribute.String(tracing.AttrEndpoint, endpoint)))
	defer span.End()
	ctx = logging.WithOperation(logging.WithEndpoint(ctx, endpoint), opCheckout)

	lease, err := p.checkout(ctx, endpoint)
	if err != nil {
		tracing.SetError(span, err)
		tracing.SetErrorKind(span, string(engine.KindOf(err)))
		tracing.SetStatus(span, err)
		p.logger.DebugContext(ctx, "checkout failed", "kind", engine.KindOf(err), "error", err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String(tracing.AttrLeaseID, lease.ID),
		attribute.Bool(tracing.AttrReused, lease.reused),
	)
	p.logger.DebugContext(logging.WithLeaseID(ctx, lease.ID), "lease acquired", "reused", lease.reused)
	return lease, nil
}

func (p *Pool) checkout(ctx context.Context, endpoint string) (*Lease, error) {
	if endpoint == "" {
		return nil, engine.InvalidArgument(engine.ConnectionPool, opCheckout, "endpoint must not be empty")
	}

	ep, err := p.endpoint(endpoint)
	if err != nil {
		return nil, err
	}

	if err := p.acquire(ctx, ep); err != nil {
		return nil, err
	}

	p.checkouts.Add(1)

	if conn := p.popIdle(ep); conn != nil {
		p.reuses.Add(1)
		return newLease(p, ep, endpoint, conn, true), nil
	}

	conn, err := p.dial(ctx, endpoint)
	if err != nil {
		ep.mu.Lock()
		ep.inUse--
		ep.mu.Unlock()
		ep.slots.Release(1)
		return nil, err
	}

	p.dials.Add(1)
	return newLease(p, ep, endpoint, conn, false), nil
}

// endpoint returns the state for endpoint, creating it on first use.
func (p *Pool) endpoint(endpoint string) (*endpointState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, engine.Unavailable(engine.ConnectionPool, opCheckout, "pool is closed")
	}

	ep, ok := p.endpoints[endpoint]
	if !ok {
		ep = &endpointState{slots: semaphore.NewWeighted(int64(p.cfg.MaxSize))}
		p.endpoints[endpoint] = ep
	}
	return ep, nil
}

// acquire takes one slot according to the saturation policy.
func (p *Pool) acquire(ctx context.Context, ep *endpointState) error {
	if ep.slots.TryAcquire(1) {
		return nil
	}

	if p.cfg.Policy == PolicyFailFast || p.cfg.WaitTimeout <= 0 {
		p.timeouts.Add(1)
		return engine.Timeout(engine.ConnectionPool, opCheckout, "pool saturated", nil)
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.WaitTimeout)
	defer cancel()

	if err := ep.slots.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.timeouts.Add(1)
		return engine.Timeout(engine.ConnectionPool, opCheckout,
			fmt.Sprintf("no connection available within %v", p.cfg.WaitTimeout), err)
	}
	return nil
}

// popIdle takes the most recently returned live connection and marks the
// slot in use. Expired or dead idle connections found on the way are closed.
// It returns nil when the caller must dial.
func (p *Pool) popIdle(ep *endpointState) engine.Conn {
	now := p.now()
	var stale []engine.Conn

	ep.mu.Lock()
	var found engine.Conn
	for len(ep.idle) > 0 {
		last := ep.idle[len(ep.idle)-1]
		ep.idle = ep.idle[:len(ep.idle)-1]
		if now.Sub(last.lastUsed) >= p.cfg.IdleTimeout || !last.conn.Alive() {
			stale = append(stale, last.conn)
			continue
		}
		found = last.conn
		break
	}
	ep.inUse++
	ep.mu.Unlock()

	for _, c := range stale {
		p.discards.Add(1)
		_ = c.Close()
	}
	return found
}

func (p *Pool) dial(ctx context.Context, endpoint string) (engine.Conn, error) {
	if p.dialLimiter != nil {
		if err := p.dialLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting to dial %s: %w", endpoint, err)
		}
	}

	dialCtx := ctx
	if p.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.cfg.DialTimeout)
		defer cancel()
	}

	conn, err := p.dialer.Dial(dialCtx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	p.logger.DebugContext(ctx, "dialed connection")
	return conn, nil
}

// put returns a leased connection. Dead connections, and any connection
// returned after Close, are closed instead of pooled.
func (p *Pool) put(ep *endpointState, conn engine.Conn, reuse bool) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	keep := reuse && !closed && conn.Alive()

	ep.mu.Lock()
	ep.inUse--
	if keep {
		ep.idle = append(ep.idle, idleConn{conn: conn, lastUsed: p.now()})
	}
	ep.mu.Unlock()
	ep.slots.Release(1)

	if keep {
		return nil
	}
	p.discards.Add(1)
	return conn.Close()
}

// Reap closes idle connections unused since now-IdleTimeout and returns
// how many were closed.
func (p *Pool) Reap(now time.Time) int {
	p.mu.Lock()
	states := make([]*endpointState, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		states = append(states, ep)
	}
	p.mu.Unlock()

	var expired []engine.Conn
	for _, ep := range states {
		ep.mu.Lock()
		kept := ep.idle[:0]
		for _, ic := range ep.idle {
			if now.Sub(ic.lastUsed) >= p.cfg.IdleTimeout {
				expired = append(expired, ic.conn)
				continue
			}
			kept = append(kept, ic)
		}
		for i := len(kept); i < len(ep.idle); i++ {
			ep.idle[i] = idleConn{}
		}
		ep.idle = kept
		ep.mu.Unlock()
	}

	for _, c := range expired {
		_ = c.Close()
	}
	if n := len(expired); n > 0 {
		p.reaped.Add(uint64(n))
		p.logger.Debug("reaped idle connections", "count", n)
	}
	return len(expired)
}

func (p *Pool) reapLoop(interval time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.Reap(p.now())
		}
	}
}

// Health reports pool state without performing I/O.
func (p *Pool) Health() Report {
	p.mu.Lock()
	r := Report{
		Open:      !p.closed,
		Policy:    p.cfg.Policy,
		MaxSize:   p.cfg.MaxSize,
		Endpoints: make(map[string]EndpointReport, len(p.endpoints)),
	}
	states := make(map[string]*endpointState, len(p.endpoints))
	for name, ep := range p.endpoints {
		states[name] = ep
	}
	p.mu.Unlock()

	var problems []string
	for name, ep := range states {
		ep.mu.Lock()
		er := EndpointReport{InUse: ep.inUse, Idle: len(ep.idle), MaxSize: p.cfg.MaxSize}
		ep.mu.Unlock()

		if er.InUse < 0 || er.InUse+er.Idle > er.MaxSize {
			problems = append(problems, fmt.Sprintf("endpoint %s has %d in use and %d idle over max %d",
				name, er.InUse, er.Idle, er.MaxSize))
		}
		r.Endpoints[name] = er
		r.TotalInUse += er.InUse
		r.TotalIdle += er.Idle
	}

	if !r.Open {
		problems = append(problems, "pool is closed")
	}
	r.Healthy = len(problems) == 0
	if !r.Healthy {
		r.Error = problems[0]
	}
	return r
}

// HealthCheck returns an Unhealthy error if Health reports a problem.
func (p *Pool) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r := p.Health(); !r.Healthy {
		return engine.Unhealthy(engine.ConnectionPool, opHealth, r.Error)
	}
	return nil
}

// Stats returns cumulative counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Checkouts: p.checkouts.Load(),
		Dials:     p.dials.Load(),
		Reuses:    p.reuses.Load(),
		Timeouts:  p.timeouts.Load(),
		Discards:  p.discards.Load(),
		Reaped:    p.reaped.Load(),
	}
}

// Close stops the reaper and closes every idle connection. Outstanding
// leases stay valid; their connections are closed when returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	states := make([]*endpointState, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		states = append(states, ep)
	}
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done

	var errs []error
	for _, ep := range states {
		ep.mu.Lock()
		idle := ep.idle
		ep.idle = nil
		ep.mu.Unlock()
		for _, ic := range idle {
			if err := ic.conn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
