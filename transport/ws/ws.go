// Package ws adapts a *gorilla/websocket.Conn to room.Stream: text frames
// are rejected rather than silently accepted, an incoming close frame
// reads out as graceful end-of-stream, and every write goes out as a
// single complete binary frame.
package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const controlDeadline = time.Second

// Conn wraps a *websocket.Conn as a room.Stream. A single inbound
// WebSocket message may be larger or smaller than a caller's Read
// buffer, so Conn holds the undelivered remainder of the last message
// it read off the wire between calls.
type Conn struct {
	conn    *websocket.Conn
	pending []byte

	writeMu sync.Mutex
	alive   atomic.Bool
}

// Wrap returns a Conn backed by conn.
func Wrap(conn *websocket.Conn) *Conn {
	c := &Conn{conn: conn}
	c.alive.Store(true)
	return c
}

// Read implements room.Stream. It rejects a peer's text frame by closing
// the connection with CloseUnsupportedData and reporting end-of-stream,
// and maps an incoming close frame to the same (0, nil) end-of-stream
// signal rather than surfacing gorilla's *websocket.CloseError.
func (c *Conn) Read(dst []byte) (int, error) {
	for len(c.pending) == 0 {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.alive.Store(false)
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return 0, nil
			}
			return 0, err
		}

		if messageType == websocket.TextMessage {
			c.rejectTextFrame()
			return 0, nil
		}

		c.pending = data
	}

	n := copy(dst, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements room.Stream. Every call emits exactly one complete
// binary-type WebSocket frame; gorilla's WriteMessage always sets the
// end-of-message flag, so a single call cannot be split across frames.
func (c *Conn) Write(src []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, src); err != nil {
		c.alive.Store(false)
		return 0, err
	}
	return len(src), nil
}

// IsAlive implements room.Stream.
func (c *Conn) IsAlive() bool { return c.alive.Load() }

// Close sends a normal-closure control frame, best-effort, then closes
// the underlying connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	if c.alive.CompareAndSwap(true, false) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlDeadline))
	}
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Conn) rejectTextFrame() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.alive.CompareAndSwap(true, false) {
		msg := websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "text frames not supported")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlDeadline))
	}
}
