package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/gorilla/websocket"
)

// frameInterval throttles plain frame messages; gesture changes are always sent.
const frameInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// liveMessage is one message on /api/live. Type is "change" for committed
// gesture changes and "frame" for periodic state updates.
type liveMessage struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Result    app.FrameResult `json:"result"`
}

// LiveHandler pushes pipeline results to WebSocket clients.
type LiveHandler struct {
	clients   map[*websocket.Conn]chan []byte
	mu        sync.RWMutex
	lastFrame time.Time
}

// NewLiveHandler creates a LiveHandler with no clients.
func NewLiveHandler() *LiveHandler {
	return &LiveHandler{
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[conn]; ok {
			close(send)
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	}()

	go func() {
		for msg := range send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				return
			}
		}
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish is an app.Observer. It never blocks: a client that falls behind
// misses messages.
func (h *LiveHandler) Publish(res app.FrameResult) {
	now := time.Now()
	kind := "frame"
	if res.Change != nil {
		kind = "change"
	}

	h.mu.Lock()
	if len(h.clients) == 0 || (kind == "frame" && now.Sub(h.lastFrame) < frameInterval) {
		h.mu.Unlock()
		return
	}
	if kind == "frame" {
		h.lastFrame = now
	}
	h.mu.Unlock()

	msg, err := json.Marshal(liveMessage{Type: kind, Timestamp: now.UnixMilli(), Result: res})
	if err != nil {
		log.Printf("encoding live message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *LiveHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *LiveHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.clients {
		close(send)
		conn.Close()
		delete(h.clients, conn)
	}
}
