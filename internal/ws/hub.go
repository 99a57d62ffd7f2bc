package ws

import (
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

var errConnNotRegistered = errors.New("connection not registered")

// Hub tracks which websocket connections are attached to which rooms on this
// instance. The fanout relay pushes payloads through it; the hub only knows
// local connections.
type Hub struct {
	rooms    map[int64]map[*websocket.Conn]bool
	connInfo map[int64]map[*websocket.Conn]ConnInfo
	writeMu  map[*websocket.Conn]*sync.Mutex
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[int64]map[*websocket.Conn]bool),
		connInfo: make(map[int64]map[*websocket.Conn]ConnInfo),
		writeMu:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// AddClient registers a websocket connection to a room.
func (h *Hub) AddClient(roomID int64, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[roomID][conn] = true
	if _, ok := h.connInfo[roomID]; !ok {
		h.connInfo[roomID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[roomID][conn] = info
	h.writeMu[conn] = &sync.Mutex{}
}

// RemoveClient removes a websocket connection from a room.
func (h *Hub) RemoveClient(roomID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if infos, ok := h.connInfo[roomID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, roomID)
		}
	}
	delete(h.writeMu, conn)
}

// WriteConn sends one payload to a connection. The websocket library allows
// only a single writer at a time, so broadcasts and per-connection frames all
// go through the connection's write lock.
func (h *Hub) WriteConn(conn *websocket.Conn, payload []byte) error {
	h.mu.RLock()
	lock := h.writeMu[conn]
	h.mu.RUnlock()
	if lock == nil {
		return errConnNotRegistered
	}

	lock.Lock()
	defer lock.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// BroadcastRoom pushes a payload to every local connection in the room.
func (h *Hub) BroadcastRoom(roomID int64, payload []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[roomID]))
	for conn := range h.rooms[roomID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.WriteConn(conn, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveClient(roomID, conn)
		}
	}
}

// BroadcastPresence pushes a presence payload to every local connection in
// every room.
func (h *Hub) BroadcastPresence(payload []byte) {
	h.mu.RLock()
	targets := make(map[int64][]*websocket.Conn, len(h.rooms))
	for roomID, conns := range h.rooms {
		for conn := range conns {
			targets[roomID] = append(targets[roomID], conn)
		}
	}
	h.mu.RUnlock()

	for roomID, conns := range targets {
		for _, conn := range conns {
			if err := h.WriteConn(conn, payload); err != nil {
				log.Printf("websocket write error: %v", err)
				conn.Close()
				h.RemoveClient(roomID, conn)
			}
		}
	}
}
