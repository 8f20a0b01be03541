package dashboard

import (
	"context"
	"encoding/json"
	"sync"

	"codeberg.org/mutker/motortwin/internal/logger"
)

const broadcastBuffer = 64

// Message types on the websocket.
const (
	TypeScene      = "scene"
	TypePanel      = "panel"
	TypeConnection = "connection"
	TypeToggle     = "toggle"
	TypeConfig     = "config"
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub fans messages out to every connected websocket client.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			logger.Debug().Str("client", c.id).Str("remote", c.conn.RemoteAddr().String()).Msg("Dashboard client registered")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				logger.Debug().Str("client", c.id).Msg("Dashboard client unregistered")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					logger.Warn().Str("client", c.id).Msg("Dashboard client too slow, removing")
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers c, reporting false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast wraps payload in a typed envelope and queues it. It never
// blocks; messages are dropped when the queue is full.
func (h *Hub) Broadcast(kind string, payload any) {
	msg, err := json.Marshal(envelope{Type: kind, Payload: payload})
	if err != nil {
		logger.Error().Err(err).Str("type", kind).Msg("Failed to encode dashboard message")
		return
	}
	h.broadcastRaw(msg)
}

func (h *Hub) broadcastRaw(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn().Msg("Dashboard broadcast queue full, dropping message")
	}
}
