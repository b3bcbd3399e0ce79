package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub manages WebSocket connections and channel subscriptions. Channels
// mirror the pub/sub bus: a connection is subscribed to its actor's
// channels at register time and receives every event published on them.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*Conn]bool
	subs    map[string]map[*Conn]bool // channel -> connections
	publish chan Event
	log     *zap.Logger
}

// Conn represents a WebSocket connection
type Conn struct {
	ws      *websocket.Conn
	send    chan []byte
	hub     *Hub
	actorID string
	subs    map[string]bool
}

// Event represents a message to be published
type Event struct {
	Channel string
	Message map[string]interface{}
}

// NewHub creates a new WebSocket hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns:   make(map[*Conn]bool),
		subs:    make(map[string]map[*Conn]bool),
		publish: make(chan Event, 256),
		log:     log,
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for event := range h.publish {
		h.mu.RLock()
		conns := make([]*Conn, 0, len(h.subs[event.Channel]))
		for conn := range h.subs[event.Channel] {
			conns = append(conns, conn)
		}
		h.mu.RUnlock()

		if len(conns) == 0 {
			continue
		}
		msg, _ := json.Marshal(event.Message)
		for _, conn := range conns {
			select {
			case conn.send <- msg:
			default:
				h.unregister(conn)
			}
		}
	}
}

// Publish queues an event for delivery to the channel's subscribers.
func (h *Hub) Publish(channel string, message map[string]interface{}) {
	select {
	case h.publish <- Event{Channel: channel, Message: message}:
	default:
		h.log.Warn("Dropping event, hub queue full", zap.String("channel", channel))
	}
}

// NewConn wraps an upgraded websocket subscribed to the given channels.
func NewConn(wsConn *websocket.Conn, hub *Hub, actorID string, channels []string) *Conn {
	subs := make(map[string]bool, len(channels))
	for _, ch := range channels {
		subs[ch] = true
	}
	return &Conn{
		ws:      wsConn,
		send:    make(chan []byte, 64),
		hub:     hub,
		actorID: actorID,
		subs:    subs,
	}
}

// Register adds a connection and its subscriptions to the hub
func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
	for channel := range conn.subs {
		if h.subs[channel] == nil {
			h.subs[channel] = make(map[*Conn]bool)
		}
		h.subs[channel][conn] = true
	}
	h.log.Debug("WebSocket registered", zap.String("actor_id", conn.actorID), zap.Int("channels", len(conn.subs)))
}

func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		return
	}
	delete(h.conns, conn)
	close(conn.send)
	for channel := range conn.subs {
		if subs := h.subs[channel]; subs != nil {
			delete(subs, conn)
			if len(subs) == 0 {
				delete(h.subs, channel)
			}
		}
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WritePump pushes queued messages and pings to the socket.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// ReadPump drains the socket until it closes. Incoming frames are ignored;
// the channel set is fixed at register time.
func (c *Conn) ReadPump() {
	defer c.hub.unregister(c)
	c.ws.SetReadLimit(4096)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
