package websocket

import (
	"context"
	"errors"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/shoplist/internal/auth"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one change-feed connection. The feed only flows from server to
// client; frames from the peer are read and discarded.
type Client struct {
	hub     *Hub
	conn    *ws.Conn
	userID  string
	expires time.Time
	send    chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, p auth.Principal) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  p.UserID,
		expires: p.ExpiresAt,
		send:    make(chan []byte, sendBufferSize),
	}
}

// Run streams published messages until the peer goes away, ctx ends or the
// credential the connection was opened with expires.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead drops the connection without a close frame once its context
	// ends, so the expiry deadline only bounds pump.
	ctx = c.conn.CloseRead(ctx)
	if !c.expires.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, c.expires)
		defer cancel()
	}

	err := c.pump(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		c.conn.Close(ws.StatusPolicyViolation, "token expired")
		return
	}
	c.conn.CloseNow()
}

func (c *Client) pump(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return nil
			}
			if err := c.write(ctx, msg); err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
