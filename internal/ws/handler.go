package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"blindrelay/pkg/interfaces"
	"blindrelay/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is a deployment concern; the reverse proxy owns it.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

const (
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Dispatcher is the orchestration boundary the transport hands connections
// and inbound frames to.
type Dispatcher interface {
	// Connect admits a new connection into its session. An error means the
	// connection must not proceed; the handler reports and closes it.
	Connect(conn interfaces.Connection) error

	// Inbound processes one raw client frame.
	Inbound(conn interfaces.Connection, data []byte)

	// Disconnect cleans up after a connection ends.
	Disconnect(conn interfaces.Connection)
}

// Handler upgrades test-session WebSocket requests and pumps their frames
// into the dispatcher.
type Handler struct {
	dispatcher Dispatcher
}

// NewHandler creates a WebSocket handler.
func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// HandleWebSocket serves /ws/{session_id}/{user_id}/{role}. Parameters are
// validated before the upgrade so bad requests get proper HTTP errors
// instead of a doomed socket.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	userID := r.PathValue("user_id")
	roleParam := r.PathValue("role")

	if sessionID == "" || userID == "" || roleParam == "" {
		http.Error(w, "Missing path parameters: session_id, user_id, role", http.StatusBadRequest)
		return
	}

	if !types.IsValidUserID(userID) {
		http.Error(w, types.ErrInvalidUserID.Error(), http.StatusBadRequest)
		return
	}

	role, err := types.ParseRole(roleParam)
	if err != nil {
		http.Error(w, "Invalid role: must be judge, human, or ai", http.StatusBadRequest)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConn(wsConn, userID, role, sessionID)

	if err := h.dispatcher.Connect(conn); err != nil {
		log.Printf("Connection rejected: user=%s session=%s: %v", userID, sessionID, err)
		_ = conn.WriteJSON(map[string]interface{}{
			"type":  "error",
			"error": err.Error(),
		})
		_ = conn.Close()
		return
	}

	go h.readPump(conn)
}

// readPump owns the read side of one connection: heartbeat deadlines, the
// frame loop, and disconnect cleanup.
func (h *Handler) readPump(conn *Conn) {
	defer func() {
		h.dispatcher.Disconnect(conn)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", conn.UserID(), err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.dispatcher.Inbound(conn, data)
		}
	}
}
