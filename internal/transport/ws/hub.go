package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"vidyavichar/internal/metrics"
	"vidyavichar/internal/model"

	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client → server
const (
	MsgJoinRoom    MessageType = "join-room"
	MsgLeaveRoom   MessageType = "leave-room"
	MsgJoinCourse  MessageType = "join-course"
	MsgJoinSession MessageType = "join-session"
)

// Server → client, besides the domain events in model.EventType
const (
	MsgRoomJoined MessageType = "room:joined"
	MsgRoomLeft   MessageType = "room:left"
	MsgError      MessageType = "error"
)

const sendBufferSize = 256

var (
	ErrUnknownConnection = errors.New("connection is not registered")
	ErrInvalidRoom       = errors.New("invalid room name")
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Connection is one live client. Send is closed by the hub on Unregister.
type Connection struct {
	ID     string
	Caller model.Caller
	Send   chan []byte
}

// NewConnection creates a connection with a buffered send channel
func NewConnection(caller model.Caller) *Connection {
	return &Connection{
		ID:     uuid.NewString(),
		Caller: caller,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// Hub maps rooms to their subscribed connections and fans events out to them.
// Fan-out for a publish happens under the hub lock, so every subscriber of a room
// observes events in publish-call order.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*Connection]struct{}
	conns   map[*Connection]map[string]struct{}
	metrics *metrics.Metrics
}

// NewHub creates a new WebSocket hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Connection]struct{}),
		conns:   make(map[*Connection]map[string]struct{}),
		metrics: m,
	}
}

// Register adds a connection with no room memberships
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		return
	}
	h.conns[conn] = make(map[string]struct{})
	h.metrics.SetConnections(len(h.conns))
	log.Printf("ws: connection %s registered (user %s)", conn.ID, conn.Caller.ID)
}

// Unregister removes the connection from every room and closes its send channel
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.conns[conn]
	if !ok {
		return
	}
	for room := range rooms {
		h.removeLocked(conn, room)
	}
	delete(h.conns, conn)
	close(conn.Send)
	h.metrics.SetConnections(len(h.conns))
	h.metrics.SetRooms(len(h.rooms))
	log.Printf("ws: connection %s unregistered", conn.ID)
}

// Join subscribes the connection to a room, creating the room on first join
func (h *Hub) Join(conn *Connection, room string) error {
	if !model.ValidRoom(room) {
		return ErrInvalidRoom
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.conns[conn]
	if !ok {
		return ErrUnknownConnection
	}
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[*Connection]struct{})
		h.rooms[room] = subs
	}
	subs[conn] = struct{}{}
	rooms[room] = struct{}{}
	h.metrics.SetRooms(len(h.rooms))
	return nil
}

// Leave unsubscribes the connection; empty rooms are dropped
func (h *Hub) Leave(conn *Connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		return
	}
	h.removeLocked(conn, room)
	h.metrics.SetRooms(len(h.rooms))
}

func (h *Hub) removeLocked(conn *Connection, room string) {
	delete(h.conns[conn], room)
	if subs, ok := h.rooms[room]; ok {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish sends the event to every subscriber of room (implements service.Broadcaster).
// It never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(room string, eventType model.EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: marshal %s payload: %v", eventType, err)
		return
	}
	h.PublishRaw(room, MessageType(eventType), data)
}

// PublishRaw fans out an already encoded payload
func (h *Hub) PublishRaw(room string, msgType MessageType, payload json.RawMessage) int {
	data, err := json.Marshal(&Message{Type: msgType, Payload: payload})
	if err != nil {
		log.Printf("ws: marshal %s message: %v", msgType, err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.EventPublished(string(msgType))
	delivered := 0
	for conn := range h.rooms[room] {
		select {
		case conn.Send <- data:
			delivered++
		default:
			h.metrics.EventDropped(string(msgType))
			log.Printf("ws: dropped %s for connection %s (buffer full)", msgType, conn.ID)
		}
	}
	return delivered
}

// SendTo delivers a message to a single connection, used for acks and errors
func (h *Hub) SendTo(conn *Connection, msgType MessageType, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(&Message{Type: msgType, Payload: raw})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		return
	}
	select {
	case conn.Send <- data:
	default:
	}
}

// RoomSize returns the number of subscribers of a room
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// RoomCount returns the number of non-empty rooms
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// RoomsOf lists the rooms a connection belongs to
func (h *Hub) RoomsOf(conn *Connection) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var rooms []string
	for room := range h.conns[conn] {
		rooms = append(rooms, room)
	}
	return rooms
}
