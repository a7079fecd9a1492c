package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"fastllm-hq/turbine/pkg/engine"
)

const (
	opCheck  = "check_rate_limit"
	opHealth = "health_check"
	opNew    = "new"
)

// Limiter enforces per-key sliding window limits.
//
// Keys are spread over shards by hash. A shard lock is held only to find or
// create a key's window; admission runs under the window's own lock, so
// unrelated keys never contend and each key has a single writer.
type Limiter struct {
	shards     []*shard
	mask       uint64
	sweepEvery uint64
	now        func() time.Time

	admitted atomic.Uint64
	rejected atomic.Uint64
	evicted  atomic.Uint64
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
	ops     uint64
}

// New creates a rate limiter.
// It returns an InvalidArgument error if Shards is not a power of two.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	if cfg.Shards == 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.SweepEvery == 0 {
		cfg.SweepEvery = DefaultSweepEvery
	}
	if cfg.Shards < 1 || cfg.Shards&(cfg.Shards-1) != 0 {
		return nil, engine.InvalidArgument(engine.RateLimiter, opNew,
			fmt.Sprintf("shards must be a power of two, got %d", cfg.Shards))
	}
	if cfg.SweepEvery < 1 {
		return nil, engine.InvalidArgument(engine.RateLimiter, opNew,
			fmt.Sprintf("sweep interval must be positive, got %d", cfg.SweepEvery))
	}

	l := &Limiter{
		shards:     make([]*shard, cfg.Shards),
		mask:       uint64(cfg.Shards - 1),
		sweepEvery: uint64(cfg.SweepEvery),
		now:        time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Name returns the component name.
func (l *Limiter) Name() string {
	return engine.RateLimiter
}

// CheckRateLimit reports whether a call for key is admitted under limit
// calls per windowSeconds. An admitted call is counted.
func (l *Limiter) CheckRateLimit(key string, limit, windowSeconds int) (bool, error) {
	if windowSeconds < 1 {
		return false, engine.InvalidArgument(engine.RateLimiter, opCheck,
			fmt.Sprintf("window must be at least 1 second, got %d", windowSeconds))
	}
	d, err := l.Check(key, limit, time.Duration(windowSeconds)*time.Second)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Check applies one admission attempt for key and returns the full decision.
// A call at time t is admitted iff fewer than limit admissions for key fall
// in (t-window, t].
func (l *Limiter) Check(key string, limit int, window time.Duration) (*Decision, error) {
	if key == "" {
		return nil, engine.InvalidArgument(engine.RateLimiter, opCheck, "key must not be empty")
	}
	if limit < 1 {
		return nil, engine.InvalidArgument(engine.RateLimiter, opCheck,
			fmt.Sprintf("limit must be at least 1, got %d", limit))
	}
	if window <= 0 {
		return nil, engine.InvalidArgument(engine.RateLimiter, opCheck,
			fmt.Sprintf("window must be positive, got %v", window))
	}

	for {
		w := l.lookup(key, window)

		w.mu.Lock()
		if w.evicted {
			w.mu.Unlock()
			continue
		}
		d := w.admitLocked(l.now(), limit, window)
		w.mu.Unlock()

		if d.Allowed {
			l.admitted.Add(1)
		} else {
			l.rejected.Add(1)
		}
		return d, nil
	}
}

// lookup returns the window for key, creating it if needed, and runs a lazy
// sweep of the shard every sweepEvery lookups.
func (l *Limiter) lookup(key string, span time.Duration) *window {
	s := l.shards[xxhash.Sum64String(key)&l.mask]

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops++
	if s.ops%l.sweepEvery == 0 {
		l.evicted.Add(uint64(s.sweepLocked(l.now())))
	}

	w, ok := s.windows[key]
	if !ok {
		w = &window{span: span}
		s.windows[key] = w
	}
	return w
}

// Sweep evicts every key that has been idle for at least its window
// and returns the number evicted.
func (l *Limiter) Sweep(now time.Time) int {
	total := 0
	for _, s := range l.shards {
		s.mu.Lock()
		total += s.sweepLocked(now)
		s.mu.Unlock()
	}
	l.evicted.Add(uint64(total))
	return total
}

// sweepLocked evicts stale windows. Caller must hold s.mu.
func (s *shard) sweepLocked(now time.Time) int {
	n := 0
	for key, w := range s.windows {
		w.mu.Lock()
		if !w.last.IsZero() && w.staleLocked(now) {
			w.evicted = true
			delete(s.windows, key)
			n++
		}
		w.mu.Unlock()
	}
	return n
}

// Stats returns limiter statistics.
func (l *Limiter) Stats() Stats {
	keys := 0
	for _, s := range l.shards {
		s.mu.Lock()
		keys += len(s.windows)
		s.mu.Unlock()
	}
	return Stats{
		Keys:     keys,
		Admitted: l.admitted.Load(),
		Rejected: l.rejected.Load(),
		Evicted:  l.evicted.Load(),
	}
}

// HealthCheck verifies that no key holds more admissions than the largest
// limit it was checked against.
func (l *Limiter) HealthCheck(ctx context.Context) error {
	for _, s := range l.shards {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		for key, w := range s.windows {
			w.mu.Lock()
			over := len(w.stamps) > w.peak
			n, peak := len(w.stamps), w.peak
			w.mu.Unlock()
			if over {
				s.mu.Unlock()
				return engine.Unhealthy(engine.RateLimiter, opHealth,
					fmt.Sprintf("key %q holds %d admissions over limit %d", key, n, peak))
			}
		}
		s.mu.Unlock()
	}
	return nil
}
