package notify

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"herald/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes in-app notifications to connected websocket clients as
// they are created.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

// Attach subscribes the hub to notification-created events on the bus.
func (h *Hub) Attach(bus *events.Bus) {
	bus.Subscribe(func(e events.Event) {
		if e.UserID == "" || len(e.Payload) == 0 {
			return
		}
		h.Push(e.UserID, []byte(e.Payload))
	}, events.NotificationCreated)
}

// Push writes the payload to every open connection of the user.
// Connections that fail the write are dropped.
func (h *Hub) Push(userID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[userID] {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.conns[userID], conn)
		}
	}
}

// Handler upgrades the request to a websocket and keeps it registered
// until the client disconnects. The recipient is identified by the
// user_id query parameter.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("notify: websocket upgrade: %v", err)
		return
	}
	h.add(userID, conn)
	go h.readLoop(userID, conn)
}

func (h *Hub) add(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

func (h *Hub) remove(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], conn)
	conn.Close()
}

// readLoop discards client messages and unregisters on disconnect.
func (h *Hub) readLoop(userID string, conn *websocket.Conn) {
	defer h.remove(userID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Connections reports the number of open connections for a user.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}
