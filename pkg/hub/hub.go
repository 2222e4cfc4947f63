package hub

import (
	"context"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/facemoji/internal/log"
	"github.com/teslashibe/facemoji/pkg/debug"
)

// Hub fans messages out to websocket clients. One goroutine (Run) owns
// the client set; everything else talks to it over channels.
type Hub struct {
	name string

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // Closed once Run has returned
	stopOnce   sync.Once

	// Replay the latest message to new clients
	retain bool
	last   *Message

	mu      sync.RWMutex
	count   int
	running bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithReplay makes the hub send its most recent message to every new
// client, so a late subscriber does not wait for the next update.
func WithReplay() Option {
	return func(h *Hub) { h.retain = true }
}

// New creates a hub. Call Run before clients connect.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	h.setRunning(true)
	defer func() {
		h.setRunning(false)
		h.stopOnce.Do(func() { close(h.done) })
	}()

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount()
			if h.last != nil {
				client.send <- *h.last
			}
			log.Debug("ws client connected", "hub", h.name, "client", client.id, "clients", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				log.Debug("ws client disconnected", "hub", h.name, "client", client.id, "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			if h.retain {
				h.last = &msg
			}
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					h.drop(client)
					log.Warn("dropped slow ws client", "hub", h.name, "client", client.id)
				}
			}
		}
	}
}

// attach hands client to Run. It reports false once the hub has stopped.
func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

func (h *Hub) setRunning(v bool) {
	h.mu.Lock()
	h.running = v
	h.mu.Unlock()
}

// Broadcast queues msg for every client. When the queue is full the
// message is dropped; camera frames and snapshots are superseded quickly.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		debug.FrameLog("⚠️  [%s] broadcast queue full, dropping message\n", h.name)
	}
}

// BroadcastJSON encodes v and broadcasts it as a text message.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts raw bytes, such as a JPEG frame.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// Name returns the hub name.
func (h *Hub) Name() string {
	return h.name
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
