package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"blindrelay/pkg/types"
)

// Conn wraps a WebSocket connection with a single writer goroutine so
// concurrent routing deliveries never interleave frames. Identity is fixed at
// construction: the upgrade handler validates the path parameters before a
// Conn exists.
type Conn struct {
	conn      *websocket.Conn
	writeCh   chan []byte
	userID    string
	role      types.Role
	sessionID string
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

const (
	writeBuffer  = 100
	writeTimeout = 5 * time.Second
)

// NewConn wraps an upgraded WebSocket connection and starts its writer.
func NewConn(conn *websocket.Conn, userID string, role types.Role, sessionID string) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		conn:      conn,
		writeCh:   make(chan []byte, writeBuffer),
		userID:    userID,
		role:      role,
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and queues it on the writer. Safe for concurrent
// callers; fails once the connection is closed or the write queue stays full
// past the write timeout.
func (c *Conn) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnClosed
	}
}

// Close tears down the connection. Idempotent; a superseded handle that is
// closed late cannot affect its replacement.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed when the connection has been shut down.
func (c *Conn) Done() <-chan struct{} { return c.ctx.Done() }

// UserID returns the bound user's ID.
func (c *Conn) UserID() string { return c.userID }

// Role returns the seat this connection joined as.
func (c *Conn) Role() types.Role { return c.role }

// SessionID returns the session this connection belongs to.
func (c *Conn) SessionID() string { return c.sessionID }
