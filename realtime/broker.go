// Package realtime fans pipeline events out to SSE and websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event names broadcast by the pipeline.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventAlert        = "alert"
)

// Message is the JSON envelope delivered to every subscriber.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Broker handles SSE and websocket clients and broadcasting
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	mu         sync.RWMutex
	log        *zap.Logger
}

// NewBroker creates a new broker
func NewBroker(log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 256),
		log:        log,
	}
}

// Run starts the broker loop. It returns when ctx is cancelled, closing every client channel.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client)
			}
			b.mu.Unlock()
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			n := len(b.clients)
			b.mu.Unlock()
			b.log.Debug("📡 Client connected", zap.Int("total", n))

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
				b.log.Debug("📡 Client disconnected", zap.Int("total", len(b.clients)))
			}
			b.mu.Unlock()

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					// Skip if client buffer is full to prevent blocking
				}
			}
			b.mu.RUnlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// subscribe registers a client channel. It fails when ctx ends before the broker accepts it.
func (b *Broker) subscribe(ctx context.Context) (chan []byte, error) {
	client := make(chan []byte, 16)
	select {
	case b.register <- client:
		return client, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Broker) unsubscribe(client chan []byte) {
	// The broker may already have stopped and closed the channel.
	select {
	case b.unregister <- client:
	case <-time.After(time.Second):
	}
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client, err := b.subscribe(r.Context())
	if err != nil {
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			b.unsubscribe(client)
			return
		case msg, ok := <-client:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Broadcast sends a message to all connected clients. It never blocks: when the
// broadcast buffer is full the message is dropped.
func (b *Broker) Broadcast(event string, payload interface{}) {
	jsonBytes, err := json.Marshal(Message{Event: event, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		b.log.Warn("⚠️  Failed to marshal broadcast message", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case b.broadcast <- jsonBytes:
	default:
		b.log.Warn("⚠️  Broadcast buffer full, message dropped", zap.String("event", event))
	}
}
