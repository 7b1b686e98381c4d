package api

import (
	"net/http"

	"github.com/taskpilot/taskpilot-api/internal/api/shared"
	"github.com/taskpilot/taskpilot-api/internal/service"
)

// ChatHandler handles direct-message requests.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Send handles POST /api/chat.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendChatRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ok, message := h.chat.SendMessage(r.Context(), userID, req.RecipientID, req.Content)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Failed to send message")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, ChatMessageResponse{
		Success: true,
		Message: message,
	})
}

// Conversation handles GET /api/chat/{userID}: the history between the
// caller and the named user, marking the other side's messages read.
func (h *ChatHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	otherID, err := getPathUUID(r, "userID")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ok, messages := h.chat.Conversation(r.Context(), userID, otherID)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ConversationResponse{
		Success:  true,
		Messages: messages,
	})
}

// UnreadCount handles GET /api/chat/unread-count.
func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	ok, count := h.chat.UnreadCount(r.Context(), userID)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load unread count")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, UnreadCountResponse{
		Success: true,
		Count:   count,
	})
}
