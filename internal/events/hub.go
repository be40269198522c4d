package events

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// clientSendBuffer bounds the per-client outbound queue. A client
// that falls this far behind is dropped.
const clientSendBuffer = 256

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans recording events out to every connected WebSocket client.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	log        *logrus.Entry
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		log:        log,
	}
}

// Run owns the client set. It must be running before any client
// connects or any event is published.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.log.WithField("clients", len(h.clients)).Debug("websocket client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.WithField("clients", len(h.clients)).Debug("websocket client disconnected")
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Publish broadcasts one event to every connected client. Events that
// cannot be marshaled are dropped with a warning.
func (h *Hub) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).WithField("type", evt.Type).Warn("dropping event")
		return
	}
	h.broadcast <- msg
}

// ServeWS registers the connection as a subscriber and blocks until
// it closes. Subscribers never send commands; inbound frames are
// drained only so control frames keep working.
func (h *Hub) ServeWS(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
	h.register <- c
	go c.writePump()
	c.readPump(h)
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
