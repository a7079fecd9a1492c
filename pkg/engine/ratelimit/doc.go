// Package ratelimit provides the accelerated per-key rate limiter.
//
// # Algorithm
//
// Each key keeps a sliding log of admission timestamps. A call at time t is
// admitted iff fewer than limit admissions fall in (t-window, t]; admitted
// calls are appended to the log. No window-wide interval ever contains more
// than limit admissions, whether calls arrive serially or concurrently.
//
//	limiter, err := ratelimit.New(ratelimit.Config{})
//	ok, err := limiter.CheckRateLimit("user:42", 10, 60)
//	if !ok {
//	    // over limit
//	}
//
// Check returns a Decision with the remaining budget and a retry hint.
//
// # Memory
//
// A key whose last call is at least one window old holds no live
// admissions. Such keys are evicted lazily during lookups (every SweepEvery
// lookups on a shard) and by Sweep, so memory tracks the set of active keys.
//
// # Thread Safety
//
// Keys are distributed over power-of-two shards by xxhash. The shard lock is
// held only to find a key's window; admission runs under the window's own
// lock. A window removed by a sweep is flagged so that a caller racing with
// the sweep retries the lookup instead of admitting into a detached log.
package ratelimit
