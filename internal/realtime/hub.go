package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"notebook-api/internal/cache"
)

// Event is a cache lifecycle notification fanned out to subscribers.
type Event struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Reason    string `json:"reason"`
}

// Client represents a single websocket client connection.
// We keep it minimal here; the actual network conn is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub maintains active connections and broadcasts cache events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[Client]struct{}
}

// NewHub returns a hub with no subscribers. Each hub is independent; tests
// construct their own.
func NewHub() *Hub {
	return &Hub{clients: make(map[Client]struct{})}
}

// Register adds a client.
func (h *Hub) Register(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes a client.
func (h *Hub) Unregister(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Broadcast sends an event to all clients.
func (h *Hub) Broadcast(ev Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		log.Printf("realtime: marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if ok := c.Send(message); !ok {
			// client write failed; let the handler clean it up on its side
		}
	}
}

// Notifier adapts the hub to the cache engine's eviction callback for one
// named cache namespace.
func (h *Hub) Notifier(namespace string) func(key string, reason cache.EvictReason) {
	return func(key string, reason cache.EvictReason) {
		h.Broadcast(Event{Namespace: namespace, Key: key, Reason: string(reason)})
	}
}
