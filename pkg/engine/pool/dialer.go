package pool

import (
	"context"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"fastllm-hq/turbine/pkg/engine"
)

// TCPDialer opens plain TCP connections.
type TCPDialer struct {
	// Timeout bounds the TCP handshake. Zero means no limit beyond ctx.
	Timeout time.Duration

	// KeepAlive is the TCP keep-alive period. Zero uses the system default.
	KeepAlive time.Duration
}

// Dial connects to endpoint, which must be a host:port address.
func (d *TCPDialer) Dial(ctx context.Context, endpoint string) (engine.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	c, err := nd.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, err
	}
	return &TCPConn{Conn: c}, nil
}

// TCPConn is a pooled TCP connection. The embedded net.Conn is available
// for I/O while the connection is leased.
type TCPConn struct {
	net.Conn
	closed atomic.Bool
}

// Alive reports whether the connection is still usable. It polls the socket
// with an expired read deadline: a timeout means the peer is quiet and the
// connection is reusable; EOF, any other error or unsolicited data means it
// is not.
func (c *TCPConn) Alive() bool {
	if c.closed.Load() {
		return false
	}
	if err := c.Conn.SetReadDeadline(time.Now()); err != nil {
		return false
	}
	defer c.Conn.SetReadDeadline(time.Time{})

	var buf [1]byte
	n, err := c.Conn.Read(buf[:])
	if n > 0 {
		return false
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// Close closes the connection once.
func (c *TCPConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.Conn.Close()
}
