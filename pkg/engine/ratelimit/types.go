package ratelimit

import "time"

// Config contains rate limiter configuration.
type Config struct {
	// Shards is the number of key shards. Must be a power of two.
	// Zero selects DefaultShards.
	Shards int

	// SweepEvery is the number of lookups on a shard between lazy sweeps.
	// Zero selects DefaultSweepEvery.
	SweepEvery int
}

// Defaults used when Config fields are zero.
const (
	DefaultShards     = 32
	DefaultSweepEvery = 1024
)

// Decision contains the result of a rate limit check.
type Decision struct {
	// Allowed indicates if the call was admitted.
	Allowed bool `json:"allowed"`

	// Limit is the limit the call was checked against.
	Limit int `json:"limit"`

	// Remaining is how many more admissions fit in the current window.
	Remaining int `json:"remaining"`

	// RetryAfter is how long until the oldest admission leaves the window.
	// Zero when Allowed.
	RetryAfter time.Duration `json:"retry_after"`

	// Reset is when the oldest admission in the window expires.
	Reset time.Time `json:"reset"`
}

// Stats is a point-in-time view of the limiter.
type Stats struct {
	Keys     int    `json:"keys"`
	Admitted uint64 `json:"admitted"`
	Rejected uint64 `json:"rejected"`
	Evicted  uint64 `json:"evicted"`
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now. It is intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}
