package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single outbound frame.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxCallSize bounds inbound client call frames.
	maxCallSize = 1 << 10

	// sendBuffer is the per-session outbound queue; a session that falls
	// this far behind gets evicted by the hub.
	sendBuffer = 16
)

// Caller handles the client-to-server calls a session may issue. The hub
// always passes the session's own authenticated user ID, so a client can
// never act on another user's notifications regardless of the ids it sends.
type Caller interface {
	MarkNotificationRead(ctx context.Context, userID uuid.UUID, notificationID int64) bool
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) bool
}

// Session is one live WebSocket connection bound to an authenticated user.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the API gateway in front of this
	// service; the handler itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a WebSocket session for the given user and
// pumps it until disconnect. The user ID must come from the authentication
// middleware, never from the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID, caller Caller) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			"user_id", userID,
			"error", err)
		return
	}

	s := &Session{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(s)

	go s.writePump()
	s.readPump(r.Context(), caller)
}

// readPump consumes client calls until the connection drops. It owns the
// single reader goroutine for the connection.
func (s *Session) readPump(ctx context.Context, caller Caller) {
	defer func() {
		s.hub.unregister(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxCallSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Debug("websocket read error",
					"user_id", s.userID,
					"error", err)
			}
			return
		}

		var call clientCall
		if err := json.Unmarshal(msg, &call); err != nil {
			s.hub.logger.Debug("ignoring malformed client call",
				"user_id", s.userID,
				"error", err)
			continue
		}

		s.dispatch(ctx, caller, call)
	}
}

// dispatch routes a client call to the Caller with the session's own
// identity.
func (s *Session) dispatch(ctx context.Context, caller Caller, call clientCall) {
	switch call.Type {
	case CallMarkNotificationRead:
		if ok := caller.MarkNotificationRead(ctx, s.userID, call.NotificationID); !ok {
			s.hub.logger.Debug("mark notification read call failed",
				"user_id", s.userID,
				"notification_id", call.NotificationID)
		}
	case CallMarkAllNotificationsRead:
		if ok := caller.MarkAllNotificationsRead(ctx, s.userID); !ok {
			s.hub.logger.Debug("mark all notifications read call failed",
				"user_id", s.userID)
		}
	default:
		s.hub.logger.Debug("ignoring unknown client call",
			"user_id", s.userID,
			slog.String("call_type", call.Type))
	}
}

// writePump streams hub events to the client and keeps the connection alive
// with pings. It owns the single writer goroutine for the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the session.
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
