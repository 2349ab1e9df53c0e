// Package tcp adapts a net.Conn to room.Stream, the minimal two-method
// contract the Room codec depends on.
package tcp

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
)

// Conn wraps a net.Conn as a room.Stream. It translates the standard
// library's io.EOF-on-close convention into the Stream contract's
// (0, nil) end-of-stream signal, and latches IsAlive to false on the
// first read or write error.
type Conn struct {
	conn  net.Conn
	alive atomic.Bool
}

// Wrap returns a Conn backed by conn. conn is considered alive until a
// Read or Write error occurs, or Close is called.
func Wrap(conn net.Conn) *Conn {
	c := &Conn{conn: conn}
	c.alive.Store(true)
	return c
}

// Read implements room.Stream.
func (c *Conn) Read(dst []byte) (int, error) {
	n, err := c.conn.Read(dst)
	if err != nil {
		c.alive.Store(false)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// Write implements room.Stream.
func (c *Conn) Write(src []byte) (int, error) {
	n, err := c.conn.Write(src)
	if err != nil {
		c.alive.Store(false)
		return n, err
	}
	return n, nil
}

// IsAlive implements room.Stream.
func (c *Conn) IsAlive() bool { return c.alive.Load() }

// Close closes the underlying net.Conn and marks the stream dead.
func (c *Conn) Close() error {
	c.alive.Store(false)
	return c.conn.Close()
}

// RemoteAddr returns the underlying connection's remote network address,
// for log correlation alongside a Codec's StreamID.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
