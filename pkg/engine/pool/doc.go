// Package pool provides the accelerated per-endpoint connection pool.
//
// # Checkout and Return
//
//	p, err := pool.New(pool.Config{
//	    MaxSize:     8,
//	    Policy:      pool.PolicyWait,
//	    WaitTimeout: 2 * time.Second,
//	    IdleTimeout: 90 * time.Second,
//	})
//	lease, err := p.Checkout(ctx, "api.example.com:443")
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//
// A lease is held exclusively. Release validates the connection and keeps
// it for reuse if it is alive; Discard always closes it.
//
// # Bounds
//
// Every endpoint has MaxSize slots. A slot is held from checkout until the
// lease is returned, and a connection is dialed only when the endpoint has
// no idle connection, so in-use plus idle never exceeds MaxSize.
//
// When all slots are held, PolicyWait blocks up to WaitTimeout and
// PolicyFailFast fails at once. Both report an error matching
// engine.ErrTimeout. If the caller's context ends first its error is
// returned instead. Slot waits use a weighted semaphore, so a cancelled
// waiter never keeps a reservation.
//
// # Idle Connections
//
// Idle connections older than IdleTimeout are skipped at checkout and
// closed by a reaper every ReapInterval. DialRate paces new connections
// across the whole pool.
//
// # Health
//
// Health reports per-endpoint occupancy from in-memory state only; it never
// dials or checks remote endpoints.
package pool
