package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub fans accepted webhook events out to connected dashboard clients.
// Clients may subscribe to a single call id or to the full firehose.
type Hub struct {
	mu sync.RWMutex

	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// done is closed when Run returns; it unblocks register/unregister
	// sends racing a shutdown so client goroutines cannot hang forever.
	done chan struct{}

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns client membership until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent delivers payload to firehose clients and to clients
// subscribed to callID. Slow clients are skipped, never blocked on.
func (h *Hub) BroadcastEvent(callID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("ws broadcast marshal failed", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.callID != "" && client.callID != callID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
}
