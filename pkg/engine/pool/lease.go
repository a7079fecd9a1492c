package pool

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fastllm-hq/turbine/pkg/engine"
)

// Lease is an exclusively held connection. Exactly one of Release or
// Discard must be called; later calls return an InvalidArgument error.
//
// A lease always returns to the pool that issued it, even if acceleration
// has since been removed.
type Lease struct {
	// ID uniquely identifies the lease in logs and traces.
	ID string

	// Acquired is when the checkout completed.
	Acquired time.Time

	endpoint string
	conn     engine.Conn
	reused   bool

	pool *Pool
	ep   *endpointState
	done atomic.Bool
}

var _ engine.Handle = (*Lease)(nil)

func newLease(p *Pool, ep *endpointState, endpoint string, conn engine.Conn, reused bool) *Lease {
	return &Lease{
		ID:       uuid.NewString(),
		Acquired: p.now(),
		endpoint: endpoint,
		conn:     conn,
		reused:   reused,
		pool:     p,
		ep:       ep,
	}
}

// Endpoint returns the endpoint the lease was checked out for.
func (l *Lease) Endpoint() string {
	return l.endpoint
}

// Conn returns the leased connection.
func (l *Lease) Conn() engine.Conn {
	return l.conn
}

// Reused reports whether the connection came from the idle list.
func (l *Lease) Reused() bool {
	return l.reused
}

// Release returns the connection for reuse. A connection that is no longer
// alive is closed instead.
func (l *Lease) Release() error {
	if !l.done.CompareAndSwap(false, true) {
		return engine.InvalidArgument(engine.ConnectionPool, opRelease, "lease "+l.ID+" already returned")
	}
	return l.pool.put(l.ep, l.conn, true)
}

// Discard closes the connection and frees its slot.
func (l *Lease) Discard() error {
	if !l.done.CompareAndSwap(false, true) {
		return engine.InvalidArgument(engine.ConnectionPool, opRelease, "lease "+l.ID+" already returned")
	}
	return l.pool.put(l.ep, l.conn, false)
}
