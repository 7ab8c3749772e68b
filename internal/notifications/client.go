package notifications

import (
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Socket timing. Pings go out well inside the pong window so an idle but
// healthy peer never hits the read deadline.
const (
	writeWait      = 10 * time.Second
	pongWait       = time.Minute
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 16 << 10
	sendBufferSize = 256
)

// WSHub is implemented by hubs that own clients.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one member's socket. The hub writes frames into Send; WritePump
// drains it, ReadPump hands inbound frames to IncomingHandler.
type Client struct {
	Hub    WSHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint

	IncomingHandler func(*Client, []byte)
	// OnActivity fires for every inbound frame and pong.
	OnActivity func(userID uint)
}

// NewClient wraps conn for userID.
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{Hub: hub, Conn: conn, UserID: userID, Send: make(chan []byte, sendBufferSize)}
}

func (c *Client) active() {
	if c.OnActivity != nil {
		c.OnActivity(c.UserID)
	}
}

func (c *Client) extendRead() error {
	return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) write(kind int, payload []byte) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(kind, payload)
}

// ReadPump blocks until the peer goes away, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.extendRead()
	c.Conn.SetPongHandler(func(string) error {
		c.active()
		return c.extendRead()
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed", "user_id", c.UserID, "hub", c.Hub.Name(), "error", err)
			}
			return
		}
		c.active()
		if c.IncomingHandler != nil {
			c.IncomingHandler(c, frame)
		}
	}
}

// WritePump forwards queued frames and keeps the connection alive with
// pings. A closed Send channel sends a close frame and returns.
func (c *Client) WritePump() {
	pings := time.NewTicker(pingPeriod)
	defer func() {
		pings.Stop()
		_ = c.Conn.Close()
	}()

	for {
		var err error
		select {
		case frame, open := <-c.Send:
			if !open {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			err = c.write(websocket.TextMessage, frame)
		case <-pings.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// TrySend queues a frame without blocking. A full buffer or a client already
// torn down drops it.
func (c *Client) TrySend(frame []byte) (queued bool) {
	defer func() {
		// send on a closed channel
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
			queued = false
		}
	}()

	select {
	case c.Send <- frame:
		return true
	default:
	}
	observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
	middleware.Logger.Warn("websocket buffer full, dropped message", "user_id", c.UserID, "hub", c.Hub.Name())
	return false
}
