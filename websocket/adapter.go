package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shashankvibes/Pairon/domain"
	"github.com/Shashankvibes/Pairon/hub"
	"github.com/Shashankvibes/Pairon/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Conn adapts one gorilla websocket to domain.Connection. Outbound events
// go through a buffered channel drained by the write pump; a full buffer
// fails the send, the hub closes the socket, and the read pump then
// announces the departure like any other disconnect.
type Conn struct {
	id      string
	ws      *websocket.Conn
	send    chan domain.Event
	hub     *hub.Hub
	handler domain.Handler
	limiter *ratelimit.Limiter
}

func NewConn(id string, ws *websocket.Conn, h *hub.Hub, handler domain.Handler, limiter *ratelimit.Limiter) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan domain.Event, 256),
		hub:     h,
		handler: handler,
		limiter: limiter,
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(ev domain.Event) error {
	select {
	case c.send <- ev:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		// Departure notices need the directory entry, so the handler runs
		// before the hub forgets the connection.
		c.handler.Disconnecting(c)
		c.hub.Unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "connectionId", c.id, "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			slog.Warn("rate limited", "connectionId", c.id)
			continue
		}

		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Warn("marshal error", "connectionId", c.id, "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
