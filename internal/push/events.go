package push

import (
	"encoding/json"
	"fmt"

	"github.com/taskpilot/taskpilot-api/internal/domain"
)

// Server-to-client event names.
const (
	EventReceiveNotification    = "ReceiveNotification"
	EventReceiveNotifications   = "ReceiveNotifications"
	EventNotificationMarkedRead = "NotificationMarkedAsRead"
	EventAllNotificationsMarked = "AllNotificationsMarkedAsRead"
	EventReceiveChatMessage     = "ReceiveChatMessage"
)

// Client-to-server call names.
const (
	CallMarkNotificationRead     = "mark_notification_read"
	CallMarkAllNotificationsRead = "mark_all_notifications_read"
)

// Event is the JSON envelope sent to connected clients.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// clientCall is the JSON envelope received from clients. The user identity
// is never taken from this payload; it comes from the session's
// authentication context.
type clientCall struct {
	Type           string `json:"type"`
	NotificationID int64  `json:"notification_id,omitempty"`
}

// ReceiveNotificationPayload carries a single live notification plus the
// recipient's current unread count.
type ReceiveNotificationPayload struct {
	Count        int64                `json:"count"`
	Notification *domain.Notification `json:"notification"`
}

// ReceiveNotificationsPayload carries the merged set produced by the
// reconciliation path.
type ReceiveNotificationsPayload struct {
	Notifications []*domain.Notification `json:"notifications"`
}

// NotificationMarkedReadPayload confirms a single mark-read round trip.
type NotificationMarkedReadPayload struct {
	NotificationID int64 `json:"notification_id"`
	UnreadCount    int64 `json:"unread_count"`
}

// AllNotificationsMarkedReadPayload confirms a mark-all round trip.
type AllNotificationsMarkedReadPayload struct {
	UnreadCount int64 `json:"unread_count"`
}

// ReceiveChatMessagePayload carries a live chat message.
type ReceiveChatMessagePayload struct {
	Message *domain.ChatMessage `json:"message"`
}

// NewEvent builds an Event with the payload serialized in place.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to serialize %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: raw}, nil
}
