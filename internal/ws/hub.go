package ws

import "sync"

// Hub is the registry of live authenticated sockets, keyed by socket id and
// indexed by user for fan-out by upstream message delivery.
type Hub struct {
	mu      sync.RWMutex
	sockets map[string]*Socket
	byUser  map[string]map[string]*Socket
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		sockets: make(map[string]*Socket),
		byUser:  make(map[string]map[string]*Socket),
	}
}

// Register adds the socket to the registry.
func (h *Hub) Register(s *Socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sockets[s.ID] = s
	userSockets, ok := h.byUser[s.Identity.UserID]
	if !ok {
		userSockets = make(map[string]*Socket)
		h.byUser[s.Identity.UserID] = userSockets
	}
	userSockets[s.ID] = s
}

// Unregister removes the socket; safe to call for unknown ids.
func (h *Hub) Unregister(socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sockets[socketID]
	if !ok {
		return
	}
	delete(h.sockets, socketID)
	if userSockets, ok := h.byUser[s.Identity.UserID]; ok {
		delete(userSockets, socketID)
		if len(userSockets) == 0 {
			delete(h.byUser, s.Identity.UserID)
		}
	}
}

// SocketsForUser returns the user's live sockets.
func (h *Hub) SocketsForUser(userID string) []*Socket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Socket, 0, len(h.byUser[userID]))
	for _, s := range h.byUser[userID] {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sockets.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sockets)
}
