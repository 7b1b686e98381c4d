package api

import (
	"net/http"

	"github.com/taskpilot/taskpilot-api/internal/api/shared"
	"github.com/taskpilot/taskpilot-api/internal/service"
)

// NotificationHandler exposes the notification pipeline over HTTP. Every
// endpoint is scoped to the authenticated user; there is no way to address
// another user's notifications.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications. This is the reconciliation path: it
// drains the user's queue into the cache before returning the merged set.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	ok, notifications := h.notifications.GetUserNotifications(r.Context(), userID)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load notifications")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NotificationListResponse{
		Success:       true,
		Notifications: notifications,
	})
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	ok, count := h.notifications.GetUnreadCount(r.Context(), userID)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load unread count")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, UnreadCountResponse{
		Success: true,
		Count:   count,
	})
}

// MarkRead handles POST /api/notifications/{id}/read. The id is only marked
// when it belongs to the caller; a guessed foreign id reads as not found.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, err := getPathInt64(r, "id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if !h.notifications.MarkNotificationRead(r.Context(), userID, id) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Notification not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MarkReadResponse{Success: true})
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if !h.notifications.MarkAllNotificationsRead(r.Context(), userID) {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to mark notifications read")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MarkReadResponse{Success: true})
}
