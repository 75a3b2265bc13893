package services

import (
	"sync"
	"time"

	"aegisnet/internal/telemetry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketMessage is the envelope exchanged with dashboard clients
type WebSocketMessage struct {
	Type      string    `json:"type"` // alert, action, attack, window, ping, pong, error
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Token     string    `json:"token,omitempty"` // auth messages from the client
}

// ClientConnection is one connected WebSocket client
type ClientConnection struct {
	ID    string
	Conn  *websocket.Conn
	Send  chan WebSocketMessage
	Close chan struct{}
}

// WebSocketHub fans pipeline events out to every connected client
type WebSocketHub struct {
	clients    map[string]*ClientConnection
	broadcast  chan WebSocketMessage
	register   chan *ClientConnection
	unregister chan string
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
	logger     *zap.Logger
}

// NewWebSocketHub starts the hub event loop
func NewWebSocketHub(logger *zap.Logger) *WebSocketHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &WebSocketHub{
		clients:    make(map[string]*ClientConnection),
		broadcast:  make(chan WebSocketMessage, 256),
		register:   make(chan *ClientConnection),
		unregister: make(chan string),
		done:       make(chan struct{}),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *WebSocketHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			telemetry.WebSocketConnections.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, exists := h.clients[client.ID]; exists {
				close(old.Send)
			}
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			telemetry.WebSocketConnections.Set(float64(total))
			h.logger.Info("client connected", zap.String("client_id", client.ID), zap.Int("total", total))

		case clientID := <-h.unregister:
			h.mu.Lock()
			if client, exists := h.clients[clientID]; exists {
				delete(h.clients, clientID)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			telemetry.WebSocketConnections.Set(float64(total))
			h.logger.Info("client disconnected", zap.String("client_id", clientID), zap.Int("total", total))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.Send <- msg:
				default:
					// slow client, drop the message
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues event for every client; it never blocks the caller
func (h *WebSocketHub) Publish(event Event) {
	msg := WebSocketMessage{Type: event.Type, Timestamp: event.Timestamp, Data: event.Data}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Debug("broadcast queue full, dropping event", zap.String("type", event.Type))
	}
}

// Register adds a client to the hub
func (h *WebSocketHub) Register(client *ClientConnection) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(clientID string) {
	select {
	case h.unregister <- clientID:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every client channel and ends the event loop
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
