package ws

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Connection wraps a gorilla websocket connection. Writes are serialized so
// observers on different goroutines can share it.
type Connection struct {
	id         string
	socket     *websocket.Conn
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	closed     atomic.Bool
	lastActive atomic.Int64
}

// NewConnection derives the connection context from parent. It is cancelled
// when the connection closes or a read or write fails.
func NewConnection(parent context.Context, id string, socket *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(parent)
	conn := &Connection{
		id:     id,
		socket: socket,
		ctx:    ctx,
		cancel: cancel,
	}
	conn.touch()
	return conn
}

// Context is done once the peer is gone.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// WriteJSON encodes v and sends it as a single text frame.
func (c *Connection) WriteJSON(v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("connection %s already closed", c.id)
	}

	_ = c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.socket.WriteMessage(messageType, data); err != nil {
		c.cancel()
		return err
	}

	c.touch()
	return nil
}

// SetReadDeadline bounds the next ReadMessage call.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.socket.SetReadDeadline(t)
}

func (c *Connection) ReadMessage() (int, []byte, error) {
	messageType, payload, err := c.socket.ReadMessage()
	if err != nil {
		c.cancel()
		return messageType, payload, err
	}
	c.touch()
	return messageType, payload, nil
}

// WatchPeer reads and discards frames in the background so a close frame or
// a dropped socket cancels Context. It must be the only reader once called.
func (c *Connection) WatchPeer() {
	_ = c.socket.SetReadDeadline(time.Time{})
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// CloseWith sends a close frame carrying reason before closing the socket.
func (c *Connection) CloseWith(code int, reason string) error {
	c.mu.Lock()
	if !c.closed.Load() {
		_ = c.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second))
	}
	c.mu.Unlock()
	return c.Close()
}

func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	return c.socket.Close()
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// LastActive reports when the connection last sent or received a frame.
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}
