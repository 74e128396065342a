package hub

import (
	"log/slog"
	"sync"

	"github.com/Shashankvibes/Pairon/domain"
	"github.com/Shashankvibes/Pairon/metrics"
)

// memberSet is an ordered, de-duplicating set of connection IDs. Order is
// insertion order, so rosters come out deterministic.
type memberSet struct {
	order []string
	index map[string]int
}

func newMemberSet() *memberSet {
	return &memberSet{index: make(map[string]int)}
}

func (s *memberSet) add(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = len(s.order)
	s.order = append(s.order, id)
}

func (s *memberSet) remove(id string) {
	pos, ok := s.index[id]
	if !ok {
		return
	}
	s.order = append(s.order[:pos], s.order[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.order); i++ {
		s.index[s.order[i]] = i
	}
}

func (s *memberSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *memberSet) len() int { return len(s.order) }

// Hub tracks live connections and room membership, and fans events out to
// them. Rooms exist only as their member sets: the first join creates a
// room, the last leave deletes it.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]domain.Connection
	rooms   map[string]*memberSet
	roomsOf map[string]*memberSet // connID -> rooms it belongs to
	primary map[string]string     // connID -> editor room, "" if none
}

func New() *Hub {
	return &Hub{
		conns:   make(map[string]domain.Connection),
		rooms:   make(map[string]*memberSet),
		roomsOf: make(map[string]*memberSet),
		primary: make(map[string]string),
	}
}

// Register adds a live connection. It belongs to no room until it joins one.
func (h *Hub) Register(conn domain.Connection) {
	h.mu.Lock()
	h.conns[conn.ID()] = conn
	count := len(h.conns)
	h.mu.Unlock()

	metrics.ActiveConnections.Set(float64(count))
	slog.Info("client connected", "connectionId", conn.ID(), "clients", count)
}

// Unregister drops a live connection and any room membership it still has.
func (h *Hub) Unregister(conn domain.Connection) {
	h.Leave(conn.ID())

	h.mu.Lock()
	delete(h.conns, conn.ID())
	count := len(h.conns)
	h.mu.Unlock()

	metrics.ActiveConnections.Set(float64(count))
	slog.Info("client disconnected", "connectionId", conn.ID(), "clients", count)
}

// Join places a connection in roomID as its editor room. A connection
// already in a different editor room is moved; the caller signals the
// departure to the old room before joining again.
func (h *Hub) Join(connID, roomID string) {
	h.mu.Lock()
	if prev := h.primary[connID]; prev != "" && prev != roomID {
		h.removeLocked(connID, prev)
	}
	h.primary[connID] = roomID
	h.addLocked(connID, roomID)
	count := h.rooms[roomID].len()
	roomCount := len(h.rooms)
	h.mu.Unlock()

	metrics.ActiveRooms.Set(float64(roomCount))
	slog.Info("joined room", "connectionId", connID, "room", roomID, "members", count)
}

// Attach adds an extra room membership without touching the editor room.
// Used by the whiteboard surface, which joins without a display name.
func (h *Hub) Attach(connID, roomID string) {
	h.mu.Lock()
	h.addLocked(connID, roomID)
	roomCount := len(h.rooms)
	h.mu.Unlock()

	metrics.ActiveRooms.Set(float64(roomCount))
	slog.Debug("attached to room", "connectionId", connID, "room", roomID)
}

// Leave removes a connection from every room it belongs to. No-op for a
// connection in no room.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	if set, ok := h.roomsOf[connID]; ok {
		for _, roomID := range set.list() {
			h.removeLocked(connID, roomID)
		}
	}
	delete(h.roomsOf, connID)
	delete(h.primary, connID)
	roomCount := len(h.rooms)
	h.mu.Unlock()

	metrics.ActiveRooms.Set(float64(roomCount))
}

func (h *Hub) addLocked(connID, roomID string) {
	r, ok := h.rooms[roomID]
	if !ok {
		r = newMemberSet()
		h.rooms[roomID] = r
	}
	r.add(connID)

	of, ok := h.roomsOf[connID]
	if !ok {
		of = newMemberSet()
		h.roomsOf[connID] = of
	}
	of.add(roomID)
}

func (h *Hub) removeLocked(connID, roomID string) {
	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	r.remove(connID)
	if r.len() == 0 {
		delete(h.rooms, roomID)
		slog.Info("room removed", "room", roomID)
	}
	if of, ok := h.roomsOf[connID]; ok {
		of.remove(roomID)
	}
}

// Members returns the room's connection IDs in join order. Unknown rooms
// yield nil.
func (h *Hub) Members(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	return r.list()
}

// Primary returns the connection's editor room, or "" if it has none.
func (h *Hub) Primary(connID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.primary[connID]
}

// Rooms returns every room the connection belongs to, in join order.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	of, ok := h.roomsOf[connID]
	if !ok {
		return nil
	}
	return of.list()
}

// SendTo delivers an event to one connection. Unknown targets are a no-op.
func (h *Hub) SendTo(connID string, ev domain.Event) {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return
	}
	if err := conn.Send(ev); err != nil {
		// Closing the socket lets the read pump announce the departure
		// through the normal disconnect path; evicting here would strip the
		// membership those notices are computed from.
		_ = conn.Close()
	}
}

// Broadcast delivers an event to every member of roomID except
// excludeConnID ("" excludes nobody). Unknown rooms have empty effect.
func (h *Hub) Broadcast(roomID string, ev domain.Event, excludeConnID string) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]domain.Connection, 0, r.len())
	for _, id := range r.order {
		if id == excludeConnID {
			continue
		}
		if conn, ok := h.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.Send(ev); err != nil {
			_ = conn.Close()
		}
	}
}

// Stats reports active room and client counts.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.conns)
}
