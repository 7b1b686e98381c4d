package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for notifications.
var (
	ErrEmptyRecipient          = errors.New("notification recipient cannot be empty")
	ErrEmptyMessage            = errors.New("notification message cannot be empty")
	ErrUnknownNotificationType = errors.New("unknown notification type")
)

// NotificationType is the closed set of events a notification can describe.
// Values map to storage codes explicitly at the persistence boundary; no
// case-insensitive string parsing is involved anywhere.
type NotificationType int

const (
	NotificationTaskCreated NotificationType = iota + 1
	NotificationTaskUpdated
	NotificationTaskDeleted
	NotificationUserRegistered
	NotificationMessageReceived
)

// notificationTypeCodes is the single source of truth for the wire/storage
// representation of each type.
var notificationTypeCodes = map[NotificationType]string{
	NotificationTaskCreated:     "task_created",
	NotificationTaskUpdated:     "task_updated",
	NotificationTaskDeleted:     "task_deleted",
	NotificationUserRegistered:  "user_registered",
	NotificationMessageReceived: "message_received",
}

// StorageCode returns the stable code persisted to the database and carried
// in JSON payloads. Unknown values return "unknown" rather than panicking so
// logging a bad value never takes the process down.
func (t NotificationType) StorageCode() string {
	if code, ok := notificationTypeCodes[t]; ok {
		return code
	}
	return "unknown"
}

// String implements fmt.Stringer using the storage code.
func (t NotificationType) String() string {
	return t.StorageCode()
}

// Valid reports whether t is one of the defined notification types.
func (t NotificationType) Valid() bool {
	_, ok := notificationTypeCodes[t]
	return ok
}

// ParseNotificationType converts a storage code back into a NotificationType.
// Returns ErrUnknownNotificationType for codes outside the closed set.
func ParseNotificationType(code string) (NotificationType, error) {
	for t, c := range notificationTypeCodes {
		if c == code {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNotificationType, code)
}

// MarshalText encodes the type as its storage code for JSON transport.
func (t NotificationType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNotificationType, int(t))
	}
	return []byte(t.StorageCode()), nil
}

// UnmarshalText decodes a storage code received over the wire.
func (t *NotificationType) UnmarshalText(text []byte) error {
	parsed, err := ParseNotificationType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Notification is a single delivery-pipeline record. It is immutable after
// creation except for the IsRead flag, which moves false to true exactly once.
// RecipientID is the partition key for the broker queue, all cache keys and
// the push group; it never changes.
type Notification struct {
	ID          int64            `json:"id"`
	Type        NotificationType `json:"type"`
	ActorID     uuid.UUID        `json:"actor_user_id"`
	RecipientID uuid.UUID        `json:"recipient_user_id"`
	TaskID      *int64           `json:"task_id,omitempty"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewNotification builds an unread notification with the message rendered
// from the type's template. The ID is zero until the durable store assigns
// one; callers must persist before publishing or caching.
func NewNotification(
	typ NotificationType,
	actorID, recipientID uuid.UUID,
	taskID *int64,
	taskTitle string,
) (*Notification, error) {
	n := &Notification{
		Type:        typ,
		ActorID:     actorID,
		RecipientID: recipientID,
		TaskID:      taskID,
		Message:     RenderMessage(typ, actorID, recipientID, taskTitle),
		IsRead:      false,
		CreatedAt:   time.Now().UTC(),
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	return n, nil
}

// Validate checks the notification's structural invariants.
func (n *Notification) Validate() error {
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownNotificationType, int(n.Type))
	}
	if n.RecipientID == uuid.Nil {
		return ErrEmptyRecipient
	}
	if n.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// RenderMessage produces the human-readable message for a notification at
// creation time. When the actor is also the recipient the actor reference
// collapses to "you".
func RenderMessage(typ NotificationType, actorID, recipientID uuid.UUID, taskTitle string) string {
	actor := fmt.Sprintf("user: %s", actorID)
	if actorID == recipientID {
		actor = "you"
	}

	switch typ {
	case NotificationTaskCreated:
		return fmt.Sprintf("New task '%s' was assigned to you", taskTitle)
	case NotificationTaskUpdated:
		return fmt.Sprintf("Task '%s' was recently updated by %s", taskTitle, actor)
	case NotificationTaskDeleted:
		return fmt.Sprintf("Task '%s' was deleted by %s", taskTitle, actor)
	case NotificationUserRegistered:
		return "New user registered"
	case NotificationMessageReceived:
		return "New message received"
	default:
		return fmt.Sprintf("Task '%s' event occurred", taskTitle)
	}
}
