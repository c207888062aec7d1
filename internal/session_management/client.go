package session_management

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat/internal/models"
)

// Client wraps one live websocket connection. Sends are serialized by the
// client mutex; gorilla connections do not allow concurrent writers.
type Client struct {
	ID   string
	conn *websocket.Conn

	mu        sync.Mutex
	sendHook  func(models.WSFrame)
	closeHook func()
	closed    bool
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.New().String(), conn: conn}
}

// SetSendHook replaces the default websocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.sendHook = fn
	c.mu.Unlock()
}

// SetCloseHook registers a callback invoked on forced close (used in tests).
func (c *Client) SetCloseHook(fn func()) {
	c.mu.Lock()
	c.closeHook = fn
	c.mu.Unlock()
}

func (c *Client) Send(frame models.WSFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.sendHook != nil {
		c.sendHook(frame)
		return
	}
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteJSON(frame)
}

// Close severs the underlying connection. Closing the conn makes the owning
// read loop fail, which drives disconnect cleanup through the usual path.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hook := c.closeHook
	conn := c.conn
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	if conn != nil {
		_ = conn.Close()
	}
}
