package host

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/engine/ratelimit"
	"fastllm-hq/turbine/pkg/engine/tokens"
)

const component = "host"

// EstimateCounter is the unaccelerated token counter. It runs the same
// heuristic as the accelerated counter without caching.
type EstimateCounter struct {
	ratios *tokens.Ratios
}

// NewEstimateCounter creates the default token counter for a ratio table.
func NewEstimateCounter(models map[string]float64) *EstimateCounter {
	return &EstimateCounter{ratios: tokens.NewRatios(models)}
}

// CountTokens implements TokenCounter.
func (c *EstimateCounter) CountTokens(text, model string) (int, error) {
	return c.ratios.Estimate(text, model)
}

// LogLimiter is the unaccelerated rate limiter: a sliding log per key under
// a single mutex. Its admission rule matches the accelerated limiter.
// Keys whose window has fully expired are dropped on access and by a lazy
// sweep every sweepEvery calls.
type LogLimiter struct {
	mu         sync.Mutex
	logs       map[string]*keyLog
	calls      uint64
	sweepEvery uint64
	now        func() time.Time
}

type keyLog struct {
	stamps []time.Time // ascending
	span   time.Duration
}

// NewLogLimiter creates the default rate limiter.
func NewLogLimiter() *LogLimiter {
	return &LogLimiter{
		logs:       make(map[string]*keyLog),
		sweepEvery: uint64(ratelimit.DefaultSweepEvery),
		now:        time.Now,
	}
}

// CheckRateLimit implements RateLimiter.
func (l *LogLimiter) CheckRateLimit(key string, limit, windowSeconds int) (bool, error) {
	const op = "check_rate_limit"
	if key == "" {
		return false, engine.InvalidArgument(component, op, "key must not be empty")
	}
	if limit < 1 {
		return false, engine.InvalidArgument(component, op, fmt.Sprintf("limit must be at least 1, got %d", limit))
	}
	if windowSeconds < 1 {
		return false, engine.InvalidArgument(component, op, fmt.Sprintf("window must be at least 1 second, got %d", windowSeconds))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	span := time.Duration(windowSeconds) * time.Second

	l.calls++
	if l.calls%l.sweepEvery == 0 {
		l.sweepLocked(now)
	}

	kl, ok := l.logs[key]
	if !ok {
		kl = &keyLog{}
		l.logs[key] = kl
	}
	kl.span = span
	kl.prune(now)

	if len(kl.stamps) >= limit {
		return false, nil
	}
	kl.stamps = append(kl.stamps, now)
	return true, nil
}

// Keys returns the number of keys currently tracked.
func (l *LogLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs)
}

// sweepLocked drops every key with no admission left inside its window.
// Caller must hold l.mu.
func (l *LogLimiter) sweepLocked(now time.Time) {
	for key, kl := range l.logs {
		if kl.prune(now); len(kl.stamps) == 0 {
			delete(l.logs, key)
		}
	}
}

// prune drops admissions at or before now-span.
func (kl *keyLog) prune(now time.Time) {
	cutoff := now.Add(-kl.span)
	i := 0
	for i < len(kl.stamps) && !kl.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		kl.stamps = append(kl.stamps[:0], kl.stamps[i:]...)
	}
}

// DirectConnector is the unaccelerated connector: every checkout dials a
// new connection and every return closes it.
type DirectConnector struct {
	dialer engine.Dialer
}

// NewDirectConnector creates the default connector.
func NewDirectConnector(d engine.Dialer) *DirectConnector {
	return &DirectConnector{dialer: d}
}

// Checkout implements Connector.
func (c *DirectConnector) Checkout(ctx context.Context, endpoint string) (engine.Handle, error) {
	if endpoint == "" {
		return nil, engine.InvalidArgument(component, "checkout", "endpoint must not be empty")
	}
	conn, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	return &directHandle{endpoint: endpoint, conn: conn}, nil
}

type directHandle struct {
	endpoint string
	conn     engine.Conn
	done     atomic.Bool
}

func (h *directHandle) Endpoint() string { return h.endpoint }

func (h *directHandle) Conn() engine.Conn { return h.conn }

func (h *directHandle) Release() error { return h.close() }

func (h *directHandle) Discard() error { return h.close() }

func (h *directHandle) close() error {
	if !h.done.CompareAndSwap(false, true) {
		return engine.InvalidArgument(component, "release", "handle already returned")
	}
	return h.conn.Close()
}
