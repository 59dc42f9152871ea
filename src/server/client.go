package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one accepted websocket. It carries no subscription state; filters
// are looked up in the hub's store by id.
type Client struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	connectedAt time.Time
}

// -----------------------------------------------------------------------------

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	size := hub.Config.Hub.SendBufferSize
	if size <= 0 {
		size = 256
	}
	return &Client{
		id:          uuid.NewString(),
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, size),
		done:        make(chan struct{}),
		connectedAt: hub.now(),
	}
}

// -----------------------------------------------------------------------------

// ID is the stable connection id used as the subscription key.
func (c *Client) ID() string {
	return c.id
}

// -----------------------------------------------------------------------------

// trySend queues msg without blocking. A full buffer drops the message for
// this client only.
func (c *Client) trySend(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// -----------------------------------------------------------------------------

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

func (c *Client) timeouts() (writeWait, pongWait, pingPeriod time.Duration) {
	cfg := c.hub.Config.Hub
	writeWait = time.Duration(cfg.WriteWaitSeconds) * time.Second
	if writeWait <= 0 {
		writeWait = 2 * time.Second
	}
	pongWait = time.Duration(cfg.PongWaitSeconds) * time.Second
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	pingPeriod = (pongWait * 9) / 10
	return writeWait, pongWait, pingPeriod
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	_, pongWait, _ := c.timeouts()
	if limit := c.hub.Config.Hub.MaxMessageBytes; limit > 0 {
		c.conn.SetReadLimit(limit)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.Logger.Info("WebSocket error on %s: %v", c.id, err)
			}
			return
		}
		// Any frame proves liveness, not just pongs.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		c.hub.HandleControlMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	writeWait, _, pingPeriod := c.timeouts()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.Logger.Debug("Write error on %s: %v", c.id, err)
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
