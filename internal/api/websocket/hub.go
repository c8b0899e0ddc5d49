// Package websocket streams monitor events to connected subscribers.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/monitor"
	"github.com/blackkolly/rollback-controller/internal/pkg/metrics"
)

var _ monitor.EventSink = (*Hub)(nil)

// Hub maintains active WebSocket connections and broadcasts monitor events.
// It satisfies the monitor package's event sink, so the supervisor publishes
// without depending on this package.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(ctx context.Context, logger *slog.Logger) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ctx:        hubCtx,
		cancel:     cancel,
		logger:     logger,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full, close connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnectionsActive.Set(0)
}

// Publish broadcasts a monitor event to all clients. Never blocks the
// monitoring loop: when the hub is saturated or stopped the event is dropped.
func (h *Hub) Publish(event models.MonitorEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal monitor event", "type", event.Type, "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn("event stream saturated, dropping event",
			"type", event.Type, "service", event.Service)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
