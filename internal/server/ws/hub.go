// Package ws streams scan results to websocket clients as JSON text frames.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Topics a client can subscribe to.
const (
	TopicSessions      = "sessions"
	TopicOpportunities = "opportunities"
	TopicStatus        = "status"
)

// Frame is the envelope of every message sent to clients.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outbound struct {
	topic string
	data  []byte
}

// subscribeMsg is sent by clients to change their topics:
// {"action":"subscribe","topics":["opportunities"]}
type subscribeMsg struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Config controls the hub.
type Config struct {
	// Channel is the bus channel carrying completed scan sessions. Empty
	// disables the bus bridge; sessions are then pushed with PublishSession.
	Channel   string
	Mode      string
	StartedAt time.Time
}

// Hub fans scan results out to connected clients.
type Hub struct {
	bus    domain.SignalBus
	cfg    Config
	logger *slog.Logger

	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	broadcast  chan outbound

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub. bus may be nil.
func NewHub(bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	if cfg.Mode == "" {
		cfg.Mode = "unknown"
	}
	return &Hub{
		bus:    bus,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outbound, 256),
		clients:    make(map[*client]struct{}),
	}
}

// Run serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil && h.cfg.Channel != "" {
		go h.bridge(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.topic) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("ws: dropping frame for slow client", slog.String("topic", msg.topic))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// bridge relays sessions published on the bus by any scanner process.
func (h *Hub) bridge(ctx context.Context) {
	ch, err := h.bus.Subscribe(ctx, h.cfg.Channel)
	if err != nil {
		h.logger.Error("ws: subscribe failed", slog.String("channel", h.cfg.Channel), slog.String("error", err.Error()))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", h.cfg.Channel))
				return
			}
			var sess domain.ScanSession
			if err := json.Unmarshal(data, &sess); err != nil {
				h.logger.Warn("ws: undecodable session", slog.String("error", err.Error()))
				continue
			}
			h.PublishSession(sess)
		}
	}
}

// PublishSession queues a session summary frame followed by one frame per
// opportunity.
func (h *Hub) PublishSession(sess domain.ScanSession) {
	summary := sess
	summary.Opportunities = nil
	summary.Spreads = nil
	h.enqueue(TopicSessions, "scan_session", summary)
	for _, o := range sess.Opportunities {
		h.enqueue(TopicOpportunities, "opportunity", o)
	}
}

func (h *Hub) enqueue(topic, typ string, payload any) {
	data, err := encodeFrame(typ, payload)
	if err != nil {
		h.logger.Error("ws: encode frame", slog.String("type", typ), slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- outbound{topic: topic, data: data}:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping frame", slog.String("type", typ))
	}
}

func encodeFrame(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: typ, Payload: raw})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades GET /ws and subscribes the client to every topic.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		topics: map[string]bool{"*": true},
	}
	if status, err := encodeFrame("status", map[string]any{
		"mode":           h.cfg.Mode,
		"uptime_seconds": max(0, int64(time.Since(h.cfg.StartedAt).Seconds())),
	}); err == nil {
		c.send <- status
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	topics map[string]bool
}

func (c *client) wants(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics["*"] || c.topics[topic]
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch strings.ToLower(msg.Action) {
	case "subscribe":
		for _, t := range msg.Topics {
			c.topics[t] = true
		}
	case "unsubscribe":
		for _, t := range msg.Topics {
			delete(c.topics, t)
		}
	case "set":
		c.topics = make(map[string]bool, len(msg.Topics))
		for _, t := range msg.Topics {
			c.topics[t] = true
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscribeMsg
		if json.Unmarshal(data, &msg) == nil && msg.Action != "" {
			c.apply(msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
