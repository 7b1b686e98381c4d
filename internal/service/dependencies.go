package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/push"
)

// NotificationBroker is the slice of the broker adapter the orchestrator
// needs: publish into a recipient's queue and drain it with per-message
// acknowledgement.
type NotificationBroker interface {
	// PublishNotification delivers the notification to the recipient's
	// queue with at-least-once semantics.
	PublishNotification(ctx context.Context, n *domain.Notification) error

	// DrainNotifications empties the recipient's queue, calling apply for
	// each message and acknowledging it only after apply succeeds. Returns
	// the successfully applied notifications.
	DrainNotifications(
		ctx context.Context,
		userID uuid.UUID,
		apply func(ctx context.Context, n *domain.Notification) error,
	) ([]*domain.Notification, error)
}

// ChatBroker publishes chat messages into the recipient's chat queue.
type ChatBroker interface {
	PublishChatMessage(ctx context.Context, m *domain.ChatMessage) error
}

// NotificationCache is the read-optimized per-user projection. It is never
// authoritative; every method may fail or miss, and callers fall back to the
// durable store.
type NotificationCache interface {
	CacheNotification(ctx context.Context, n *domain.Notification) error
	Contains(ctx context.Context, userID uuid.UUID, id int64) (bool, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	Notifications(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID uuid.UUID, id int64) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	DeleteNotification(ctx context.Context, userID uuid.UUID, id int64) error
	DeleteAll(ctx context.Context, userID uuid.UUID) error
}

// Pusher fans an event out to every live session of a user. Implementations
// are fire-and-forget; an empty group drops the event.
type Pusher interface {
	SendToUser(userID uuid.UUID, event push.Event)
}
