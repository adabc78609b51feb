package ws

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 << 10
	writeWait      = 10 * time.Second
)

// Connection wraps a gorilla websocket connection with serialized writes
// and JSON frame helpers.
type Connection struct {
	id     string
	socket *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

// NewConnection creates a tracked websocket connection.
func NewConnection(id string, socket *websocket.Conn) *Connection {
	socket.SetReadLimit(maxMessageSize)
	return &Connection{id: id, socket: socket}
}

// WriteMessage sends a message to the client.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("connection %s: %w", c.id, ErrConnectionClosed)
	}

	_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.socket.WriteMessage(messageType, data)
}

// ReadMessage receives a message from the client.
func (c *Connection) ReadMessage() (int, []byte, error) {
	return c.socket.ReadMessage()
}

// WriteFrame encodes data as a typed JSON frame and sends it.
func (c *Connection) WriteFrame(typ string, data interface{}) error {
	raw, err := EncodeFrame(typ, data)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", typ, err)
	}
	return c.WriteMessage(websocket.TextMessage, raw)
}

// ReadFrame reads the next text message as a frame. Binary messages are skipped.
func (c *Connection) ReadFrame() (Frame, error) {
	for {
		messageType, payload, err := c.ReadMessage()
		if err != nil {
			return Frame{}, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		frame, err := DecodeFrame(payload)
		if err != nil {
			return Frame{}, fmt.Errorf("decode frame: %w", err)
		}
		if frame.Type == "" {
			return Frame{}, ErrEmptyFrameType
		}
		return frame, nil
	}
}

// Close terminates the underlying websocket connection.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	_ = c.socket.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.mu.Unlock()
	return c.socket.Close()
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// IsClosed reports whether the connection has already been closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}
