package dashboard

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// Hub tracks dashboard websocket clients and pushes every new View to them
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	onCount  func(int)
}

// NewHub creates a hub; onCount, if set, is told the client count after every change
func NewHub(onCount func(int)) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		onCount: onCount,
	}
}

// ServeWS upgrades the request, sends initial and keeps the client registered until it disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, initial View) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	werr := writeView(conn, initial)
	h.mu.Unlock()
	h.notify(count)

	log.Debug().Str("remote", r.RemoteAddr).Int("clients", count).Msg("Dashboard client connected")
	if werr != nil {
		h.remove(conn)
		return
	}

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends v to every client, dropping those that cannot be written to
func (h *Hub) Broadcast(v View) {
	h.mu.Lock()
	var dropped []*websocket.Conn
	for conn := range h.clients {
		if err := writeView(conn, v); err != nil {
			dropped = append(dropped, conn)
		}
	}
	for _, conn := range dropped {
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if len(dropped) > 0 {
		log.Debug().Int("dropped", len(dropped)).Int("clients", count).Msg("Dropped unreachable dashboard clients")
		h.notify(count)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	h.notify(0)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	if ok {
		h.notify(count)
	}
}

func (h *Hub) notify(count int) {
	if h.onCount != nil {
		h.onCount(count)
	}
}

func writeView(conn *websocket.Conn, v View) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
