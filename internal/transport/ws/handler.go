package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"vidyavichar/internal/model"
	"vidyavichar/internal/service"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Handler handles WebSocket connections
type Handler struct {
	hub      *Hub
	authSvc  *service.AuthService
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. allowedOrigins is a comma separated
// list; "*" or empty allows any origin.
func NewHandler(hub *Hub, authSvc *service.AuthService, allowedOrigins string) *Handler {
	return &Handler{
		hub:     hub,
		authSvc: authSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// roomRequest is the payload of join/leave messages. join-course and join-session
// also accept a bare JSON string id.
type roomRequest struct {
	Room      string `json:"room"`
	CourseID  string `json:"courseId"`
	SessionID string `json:"sessionId"`
}

// Serve handles GET /v1/ws?token=...
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	conn := NewConnection(claims.Caller())
	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error on %s: %v", conn.ID, err)
			}
			break
		}
		h.handleMessage(conn, data)
	}
}

func (h *Handler) handleMessage(conn *Connection, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(conn, "malformed message")
		return
	}

	req, err := decodeRoomRequest(msg.Payload)
	if err != nil {
		h.sendError(conn, "malformed payload")
		return
	}

	var room string
	switch msg.Type {
	case MsgJoinRoom, MsgLeaveRoom:
		room = req.Room
	case MsgJoinCourse:
		if req.CourseID != "" {
			room = model.CourseRoom(req.CourseID)
		}
	case MsgJoinSession:
		if req.SessionID != "" {
			room = model.SessionRoom(req.SessionID)
		}
	default:
		h.sendError(conn, "unknown message type "+string(msg.Type))
		return
	}

	if msg.Type == MsgLeaveRoom {
		h.hub.Leave(conn, room)
		h.hub.SendTo(conn, MsgRoomLeft, map[string]string{"room": room})
		return
	}

	if err := h.hub.Join(conn, room); err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.hub.SendTo(conn, MsgRoomJoined, map[string]string{"room": room})
}

func decodeRoomRequest(payload json.RawMessage) (roomRequest, error) {
	var req roomRequest
	if len(payload) == 0 {
		return req, nil
	}
	if payload[0] == '"' {
		var id string
		if err := json.Unmarshal(payload, &id); err != nil {
			return req, err
		}
		req.CourseID, req.SessionID = id, id
		return req, nil
	}
	err := json.Unmarshal(payload, &req)
	return req, err
}

func (h *Handler) sendError(conn *Connection, message string) {
	h.hub.SendTo(conn, MsgError, map[string]string{"message": message})
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowed, ",") {
		origins[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origins[origin]
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
