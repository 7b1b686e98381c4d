package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/store"
)

// PostgresNotificationStore implements the store.NotificationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgreSQL implementation of the
// NotificationStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// Ensure PostgresNotificationStore implements store.NotificationStore
var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// Create implements store.NotificationStore.Create.
// The ID comes from the notifications BIGSERIAL sequence and is written back
// into the passed notification; callers must not assign IDs themselves.
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	query := `
		INSERT INTO notifications (type, actor_user_id, recipient_user_id, task_id, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var taskID sql.NullInt64
	if n.TaskID != nil {
		taskID = sql.NullInt64{Int64: *n.TaskID, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		n.Type.StorageCode(),
		n.ActorID,
		n.RecipientID,
		taskID,
		n.Message,
		n.IsRead,
		n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		s.logger.Error("failed to create notification",
			"recipient_id", n.RecipientID,
			"type", n.Type.StorageCode(),
			"error", err)
		return fmt.Errorf("failed to create notification: %w", MapError(err))
	}

	return nil
}

// GetByID implements store.NotificationStore.GetByID.
func (s *PostgresNotificationStore) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	query := `
		SELECT id, type, actor_user_id, recipient_user_id, task_id, message, is_read, created_at
		FROM notifications
		WHERE id = $1
	`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", MapError(err))
	}

	return n, nil
}

// ListRecent implements store.NotificationStore.ListRecent.
func (s *PostgresNotificationStore) ListRecent(
	ctx context.Context,
	recipientID uuid.UUID,
	limit int,
) ([]*domain.Notification, error) {
	query := `
		SELECT id, type, actor_user_id, recipient_user_id, task_id, message, is_read, created_at
		FROM notifications
		WHERE recipient_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}

	return notifications, nil
}

// CountUnread implements store.NotificationStore.CountUnread.
func (s *PostgresNotificationStore) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE recipient_user_id = $1 AND is_read = FALSE
	`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", MapError(err))
	}

	return count, nil
}

// MarkRead implements store.NotificationStore.MarkRead.
// The recipient scoping in the WHERE clause is the authorization boundary:
// a notification belonging to someone else is indistinguishable from a
// missing one.
func (s *PostgresNotificationStore) MarkRead(ctx context.Context, recipientID uuid.UUID, id int64) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND recipient_user_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotificationNotFound
	}

	return nil
}

// MarkAllRead implements store.NotificationStore.MarkAllRead.
func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE recipient_user_id = $1 AND is_read = FALSE
	`

	if _, err := s.db.ExecContext(ctx, query, recipientID); err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", MapError(err))
	}

	return nil
}

// WithTx implements store.NotificationStore.WithTx.
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning code.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n         domain.Notification
		typeCode  string
		taskID    sql.NullInt64
		createdAt time.Time
	)

	err := row.Scan(
		&n.ID,
		&typeCode,
		&n.ActorID,
		&n.RecipientID,
		&taskID,
		&n.Message,
		&n.IsRead,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	typ, err := domain.ParseNotificationType(typeCode)
	if err != nil {
		return nil, fmt.Errorf("corrupt notification type in row %d: %w", n.ID, err)
	}
	n.Type = typ

	if taskID.Valid {
		n.TaskID = &taskID.Int64
	}
	n.CreatedAt = createdAt.UTC()

	return &n, nil
}
