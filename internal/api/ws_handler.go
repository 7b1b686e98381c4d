package api

import (
	"net/http"

	"github.com/taskpilot/taskpilot-api/internal/api/shared"
	"github.com/taskpilot/taskpilot-api/internal/push"
)

// WSHandler upgrades authenticated requests to live push sessions.
type WSHandler struct {
	hub    *push.Hub
	caller push.Caller
}

// NewWSHandler creates a new WSHandler. caller receives the client-to-server
// mark-read calls arriving over the socket.
func NewWSHandler(hub *push.Hub, caller push.Caller) *WSHandler {
	return &WSHandler{hub: hub, caller: caller}
}

// Connect handles GET /ws. The session joins the user's push group; identity
// comes from the authenticated context, never from the client.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	h.hub.ServeWS(w, r, userID, h.caller)
}
