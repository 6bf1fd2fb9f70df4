package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps a gorilla WebSocket with serialized writes.
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions
// The single writer goroutine also preserves per-connection send order, which is
// the only ordering guarantee the relay makes
type Connection struct {
	conn         *websocket.Conn
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection creates a new WebSocket connection wrapper and starts its
// writer goroutine.
func NewConnection(conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races
func (c *Connection) writeLoop() {
	defer func() {
		// Drain remaining messages so queued senders never see a closed channel
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
	}()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.cancel()
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				// TECHNICAL DISCOVERY: A failed write marks the connection dead
				// so broadcast passes prune it instead of retrying
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a frame for delivery.
// FUNCTIONAL DISCOVERY: Fire-and-forget semantics - a full buffer drops the
// frame rather than blocking the sender, a closed connection reports an error
// so callers can prune
func (c *Connection) WriteJSON(v any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		// Slow peer loses this frame; it is never allowed to block the relay
		log.Printf("Dropping frame for slow connection (buffer full)")
		return nil
	}
}

// IsAlive reports whether the connection can still accept frames.
func (c *Connection) IsAlive() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// ARCHITECTURAL DISCOVERY: Clean shutdown requires careful goroutine coordination
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()

		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done exposes closure for the read loop and ping ticker.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
