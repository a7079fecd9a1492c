package substitution

import (
	"context"
	"time"

	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/engine/pool"
	"fastllm-hq/turbine/pkg/engine/ratelimit"
	"fastllm-hq/turbine/pkg/engine/tokens"
)

// Operation names recorded by the adapters.
const (
	OpCountTokens    = "count_tokens"
	OpCheckRateLimit = "check_rate_limit"
	OpCheckout       = "checkout"
)

// Recorder receives the timing of every call made through a bound site.
type Recorder interface {
	RecordPerformance(component, operation string, durationMs float64, success bool)
}

func record(rec Recorder, component, op string, start time.Time, err error) {
	if rec == nil {
		return
	}
	rec.RecordPerformance(component, op, float64(time.Since(start))/float64(time.Millisecond), err == nil)
}

// tokenAdapter delegates host token counting to the cached counter.
type tokenAdapter struct {
	counter *tokens.Counter
	rec     Recorder
}

func (a *tokenAdapter) CountTokens(text, model string) (int, error) {
	start := time.Now()
	n, err := a.counter.CountTokens(text, model)
	record(a.rec, engine.TokenCounter, OpCountTokens, start, err)
	return n, err
}

// limiterAdapter delegates host rate limiting to the sharded limiter.
// A rejection is a successful call; only errors count as failures.
type limiterAdapter struct {
	limiter *ratelimit.Limiter
	rec     Recorder
}

func (a *limiterAdapter) CheckRateLimit(key string, limit, windowSeconds int) (bool, error) {
	start := time.Now()
	ok, err := a.limiter.CheckRateLimit(key, limit, windowSeconds)
	record(a.rec, engine.RateLimiter, OpCheckRateLimit, start, err)
	return ok, err
}

// poolAdapter delegates host connection checkout to the pool. Leases are
// returned to the pool that issued them even after the site is restored.
type poolAdapter struct {
	pool *pool.Pool
	rec  Recorder
}

func (a *poolAdapter) Checkout(ctx context.Context, endpoint string) (engine.Handle, error) {
	start := time.Now()
	lease, err := a.pool.Checkout(ctx, endpoint)
	record(a.rec, engine.ConnectionPool, OpCheckout, start, err)
	if err != nil {
		return nil, err
	}
	return lease, nil
}
