package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one connected reception screen. Screens never send anything
// meaningful, so the connection is write-only from the server's side.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	remote string
	since  time.Time
}

func NewClient(hub *Hub, conn *ws.Conn, remote string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		remote: remote,
		since:  time.Now(),
	}
}

// offer queues data without blocking and reports whether it fit.
// Callers hold the hub lock, so send is never closed underneath it.
func (c *Client) offer(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run registers the client and writes queued events until the peer goes
// away, ctx is cancelled, or the hub closes the queue.
func (c *Client) Run(ctx context.Context) {
	// CloseRead handles control frames in the background and cancels ctx
	// once the peer closes or sends a data frame.
	ctx = c.conn.CloseRead(ctx)

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "server shutting down")
				return
			}
			if err := c.write(ctx, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, data)
}
