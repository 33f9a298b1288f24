// Package board pushes live availability updates to websocket clients, for
// departure-board style displays at the facility entrances.
package board

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jacobszpz/CarPark/internal/logging"
)

// Update is one availability reading, broadcast after every state change.
type Update struct {
	ReservedOpen bool `json:"reserved_open"`
	Available    int  `json:"available"`
	Occupied     int  `json:"occupied"`
	Reserved     int  `json:"reserved"`
	Subscribers  int  `json:"subscribers"`
}

// Hub maintains the set of connected boards and broadcasts updates to them.
// Boards that cannot keep up are disconnected; a board connecting late is
// brought up to date with the most recent update.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu   sync.Mutex
	last []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run handles registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx).Msg("availability board hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.last != nil {
				select {
				case client.send <- h.last:
				default:
				}
			}
			h.mu.Unlock()
			logging.Info(ctx).Msg("availability board connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logging.Info(ctx).Msg("availability board disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			h.last = message
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an update for broadcast. It never blocks: when the hub is
// not draining the queue the update is dropped, since a newer reading will
// follow the next operation anyway.
func (h *Hub) Publish(update Update) {
	payload, err := json.Marshal(update)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("failed to serialize availability update")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
	}
}

// ClientCount returns the number of connected boards.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
