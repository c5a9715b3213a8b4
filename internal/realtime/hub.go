// Package realtime pushes session state changes to websocket clients.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"salesdash/internal/engine"
)

const (
	TypeConnection = "connection"
	TypeState      = "state"
)

var ErrHubStopped = errors.New("websocket hub stopped")

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// state frames coalesce: only the newest unsent one is kept
	stateMu      sync.Mutex
	pendingState []byte
	stateReady   chan struct{}

	mu       sync.RWMutex
	logger   *slog.Logger
	upgrader websocket.Upgrader
	onCount  func(int)
}

type HubOption func(*Hub)

// WithClientCount is called with the client count after every change.
func WithClientCount(fn func(int)) HubOption {
	return func(h *Hub) { h.onCount = fn }
}

// WithAllowedOrigins restricts the upgrade to the given origins. "*" allows all.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		}
	}
}

func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		stateReady: make(chan struct{}, 1),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		onCount: func(int) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's main loop. It returns when ctx is done, closing every client.
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
			h.onCount(0)
			h.logger.Info("Hub shutting down")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.onCount(count)
			h.logger.Info("Client registered", slog.Int("total_clients", count), slog.String("client_id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.onCount(count)
			h.logger.Info("Client unregistered", slog.Int("total_clients", count), slog.String("client_id", c.id))

		case msg := <-h.broadcast:
			h.fanout(msg)

		case <-h.stateReady:
			h.stateMu.Lock()
			msg := h.pendingState
			h.pendingState = nil
			h.stateMu.Unlock()
			if msg != nil {
				h.fanout(msg)
			}
		}
	}
}

func (h *Hub) fanout(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow consumer
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("Dropping slow client", slog.String("client_id", c.id))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client without blocking the caller. State
// messages replace any state message not yet sent, so the newest state always
// reaches clients. Other messages are dropped when the queue is full.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", slog.String("error", err.Error()))
		return
	}
	if msg.Type == TypeState {
		h.stateMu.Lock()
		h.pendingState = data
		h.stateMu.Unlock()
		select {
		case h.stateReady <- struct{}{}:
		default:
		}
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast queue full, dropping message", slog.String("type", msg.Type))
	}
}

// PublishSnapshot is an engine session subscriber.
func (h *Hub) PublishSnapshot(s engine.Snapshot) {
	h.Broadcast(Message{Type: TypeState, Data: s, Timestamp: time.Now().UTC()})
}

// ServeWS upgrades the request and greets the client with the current state.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, current engine.Snapshot) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 64),
		id:     uuid.NewString(),
		logger: h.logger,
	}

	hello, err := json.Marshal(Message{Type: TypeConnection, Data: current, Timestamp: time.Now().UTC()})
	if err == nil {
		c.send <- hello
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return ErrHubStopped
	}
	go c.writePump()
	go c.readPump()
	return nil
}
