// Package watch streams build-progress events — span-widening passes
// and diagnostics — to connected clients over a websocket, for an
// `asmforge watch` command that keeps an editor's problem panel live
// across incremental rebuilds. Grounded on a reference
// WebSocketBroadcast/WSServers (internal/network/websocket_server.go):
// the same id-keyed client map behind a mutex, with dead connections
// dropped on write failure; client ids are minted with google/uuid
// instead of a caller-supplied id, since this server owns
// its own connection lifecycle.
package watch

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is one build-progress notification broadcast to every connected
// client after a re-assemble.
type Event struct {
	Kind       string `json:"kind"` // "pass", "diagnostic", "done"
	Unit       string `json:"unit,omitempty"`
	Pass       int    `json:"pass,omitempty"`
	Message    string `json:"message,omitempty"`
	SectionLen int64  `json:"section_len,omitempty"`
}

type client struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// Server accepts websocket clients and broadcasts Events to all of them,
// the same shape as a per-id *WSServer but scoped to the one
// long-lived watch session a build driver owns.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

// NewServer creates a Server ready to be handed to an http.ServeMux as
// the upgrade endpoint.
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the connection and registers it for broadcast,
// assigning it a fresh uuid the way an accept path would assign
// the caller-chosen server id, except here the server mints its own
// client id since there is no caller to supply one.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("watch: upgrade failed: %v", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	go s.readLoop(c)
}

// readLoop drains and discards client frames; its only job is noticing
// a closed connection so Broadcast stops trying to write to it.
func (s *Server) readLoop(c *client) {
	defer s.remove(c.id)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		c.conn.Close()
		delete(s.clients, id)
	}
}

// Clients returns the ids of every currently connected client, the same
// snapshot-under-RLock shape as WebSocketGetClients.
func (s *Server) Clients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.clients))
	for id, c := range s.clients {
		if !c.closed {
			ids = append(ids, id)
		}
	}
	return ids
}

// Broadcast sends ev, JSON-encoded, to every connected client, dropping
// (and unregistering) any client whose write fails — the same
// collect-then-unlock-then-write shape as WebSocketBroadcast, so a slow
// client can't hold the registry lock during its write.
func (s *Server) Broadcast(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	var dead []string
	for _, c := range clients {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, payload)
		if err != nil {
			c.closed = true
			dead = append(dead, c.id)
		}
		c.mu.Unlock()
	}
	for _, id := range dead {
		s.remove(id)
	}
	return nil
}

// Close shuts down every connected client.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
	}
}
