package engine

import (
	"context"
)

// Component names. These are stable and appear in health reports,
// feature flags, metrics labels and binding records.
const (
	TokenCounter   = "token_counter"
	RateLimiter    = "rate_limiter"
	ConnectionPool = "connection_pool"
)

// Names lists every engine in the order the controller binds them.
var Names = []string{TokenCounter, RateLimiter, ConnectionPool}

// Engine is implemented by every acceleration engine.
type Engine interface {
	// Name returns the component name.
	Name() string

	// HealthCheck verifies the engine's internal invariants.
	// It returns nil if healthy, or an error describing the problem.
	// It must not perform remote I/O.
	HealthCheck(ctx context.Context) error
}

// Conn is a transport-layer connection managed by a pool.
type Conn interface {
	// Alive reports whether the connection can be reused.
	Alive() bool

	// Close releases the connection.
	Close() error
}

// Dialer opens new connections to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, endpoint string) (Conn, error)

// Dial calls f(ctx, endpoint).
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (Conn, error) {
	return f(ctx, endpoint)
}

// Handle is a checked-out connection. The holder must call exactly one of
// Release or Discard when done.
type Handle interface {
	// Endpoint is the endpoint the connection was checked out for.
	Endpoint() string

	// Conn returns the underlying connection.
	Conn() Conn

	// Release hands the connection back for reuse.
	Release() error

	// Discard closes the connection instead of reusing it.
	Discard() error
}
