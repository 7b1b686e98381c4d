package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
)

// NotificationStore defines the interface for notification persistence.
// The durable store is the single source of truth for notification history
// and read state; broker and cache views are reconstructible from it.
type NotificationStore interface {
	// Create saves a new notification and assigns its ID from the database
	// sequence, writing it back into the passed notification. The durable
	// write MUST complete before the notification is published or cached.
	Create(ctx context.Context, n *domain.Notification) error

	// GetByID retrieves a notification by its ID.
	// Returns ErrNotificationNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)

	// ListRecent returns up to limit notifications for the recipient,
	// newest first.
	ListRecent(ctx context.Context, recipientID uuid.UUID, limit int) ([]*domain.Notification, error)

	// CountUnread returns the number of unread notifications for the recipient.
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)

	// MarkRead sets is_read=true for the notification, scoped to the
	// recipient so one user cannot flip another user's read state.
	// Already-read notifications are a no-op success (is_read is monotonic).
	// Returns ErrNotificationNotFound if no such notification exists for
	// the recipient.
	MarkRead(ctx context.Context, recipientID uuid.UUID, id int64) error

	// MarkAllRead sets is_read=true on every unread notification for the
	// recipient. Succeeds with no effect when nothing is unread.
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) error

	// WithTx returns a new NotificationStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) NotificationStore
}
