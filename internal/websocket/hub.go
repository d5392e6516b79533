package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/fuomag9/checkpulse/internal/models"
)

// ErrBacklogFull is returned by Broadcast when the hub cannot keep up
var ErrBacklogFull = errors.New("broadcast backlog full")

// Message represents a WebSocket message
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// subscription is the payload of subscribe and unsubscribe messages
type subscription struct {
	CheckIDs []string `json:"checkIds"`
}

type envelope struct {
	checkID string
	data    []byte
}

// Client represents a WebSocket client
type Client struct {
	ID   string
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte

	mu     sync.RWMutex
	checks map[string]bool // empty means every check
}

func (c *Client) wants(checkID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return checkID == "" || len(c.checks) == 0 || c.checks[checkID]
}

// Hub maintains active clients and broadcasts messages
type Hub struct {
	clients        map[*Client]bool
	broadcast      chan envelope
	register       chan *Client
	unregister     chan *Client
	done           chan struct{}
	mu             sync.RWMutex
	allowedOrigins []string
	logger         *zap.Logger
}

// NewHub creates a new Hub
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		broadcast:      make(chan envelope, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		allowedOrigins: allowedOrigins,
		logger:         logger.Named("websocket"),
	}
}

// Run starts the hub and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("WebSocket client connected", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("WebSocket client disconnected", zap.String("client_id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.checkID) {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for all interested clients. It never blocks;
// when the backlog is full the message is dropped.
func (h *Hub) Broadcast(msgType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msgJSON, err := json.Marshal(Message{
		Type:    msgType,
		Payload: payloadJSON,
	})
	if err != nil {
		return err
	}

	env := envelope{data: msgJSON}
	if entry, ok := payload.(models.LogEntry); ok {
		env.checkID = entry.Check.ID
	}

	select {
	case h.broadcast <- env:
		return nil
	default:
		return ErrBacklogFull
	}
}

// HandleWebSocket handles WebSocket connections
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	allowedOrigins := h.allowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"localhost:3000"}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: allowedOrigins,
	})
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		Conn:   conn,
		Hub:    h,
		Send:   make(chan []byte, 256),
		checks: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump reads messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		_, message, err := c.Conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != websocket.StatusNoStatusRcvd {
				c.Hub.logger.Debug("WebSocket read ended", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Hub.logger.Debug("Failed to parse WebSocket message", zap.String("client_id", c.ID), zap.Error(err))
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ctx := context.Background()
	for message := range c.Send {
		if err := c.Conn.Write(ctx, websocket.MessageText, message); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != websocket.StatusNoStatusRcvd {
				c.Hub.logger.Debug("WebSocket write failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
	c.Conn.Close(websocket.StatusGoingAway, "server shutting down")
}

// handleMessage handles incoming WebSocket messages
func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "subscribe", "unsubscribe":
		var sub subscription
		if err := json.Unmarshal(msg.Payload, &sub); err != nil {
			c.Hub.logger.Debug("Invalid subscription", zap.String("client_id", c.ID), zap.Error(err))
			return
		}
		c.mu.Lock()
		for _, id := range sub.CheckIDs {
			if msg.Type == "subscribe" {
				c.checks[id] = true
			} else {
				delete(c.checks, id)
			}
		}
		current := subscription{CheckIDs: make([]string, 0, len(c.checks))}
		for id := range c.checks {
			current.CheckIDs = append(current.CheckIDs, id)
		}
		c.mu.Unlock()
		c.reply("subscribed", current)
	case "ping":
		c.reply("pong", struct{}{})
	default:
		c.Hub.logger.Debug("Unknown message type", zap.String("client_id", c.ID), zap.String("type", msg.Type))
	}
}

// reply sends directly to this client unless the hub already dropped it
func (c *Client) reply(msgType string, payload interface{}) {
	payloadJSON, _ := json.Marshal(payload)
	response, _ := json.Marshal(Message{Type: msgType, Payload: payloadJSON})

	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if _, ok := c.Hub.clients[c]; !ok {
		return
	}
	select {
	case c.Send <- response:
	default:
	}
}
