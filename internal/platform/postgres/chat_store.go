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

// PostgresChatMessageStore implements the store.ChatMessageStore interface
// using a PostgreSQL database as the storage backend.
type PostgresChatMessageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresChatMessageStore creates a new PostgreSQL implementation of the
// ChatMessageStore interface.
func NewPostgresChatMessageStore(db store.DBTX, logger *slog.Logger) *PostgresChatMessageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresChatMessageStore{
		db:     db,
		logger: logger.With(slog.String("component", "chat_store")),
	}
}

// Ensure PostgresChatMessageStore implements store.ChatMessageStore
var _ store.ChatMessageStore = (*PostgresChatMessageStore)(nil)

// Create implements store.ChatMessageStore.Create.
func (s *PostgresChatMessageStore) Create(ctx context.Context, m *domain.ChatMessage) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid chat message: %w", err)
	}

	query := `
		INSERT INTO chat_messages (sender_id, recipient_id, content, sent_at, is_read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		m.SenderID,
		m.RecipientID,
		m.Content,
		m.SentAt,
		m.IsRead,
	).Scan(&m.ID)
	if err != nil {
		s.logger.Error("failed to create chat message",
			"sender_id", m.SenderID,
			"recipient_id", m.RecipientID,
			"error", err)
		return fmt.Errorf("failed to create chat message: %w", MapError(err))
	}

	return nil
}

// Conversation implements store.ChatMessageStore.Conversation.
// The two participants are matched in either direction so both sides see
// the same history for the unordered pair.
func (s *PostgresChatMessageStore) Conversation(
	ctx context.Context,
	a, b uuid.UUID,
	limit int,
) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, sender_id, recipient_id, content, sent_at, is_read
		FROM chat_messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY sent_at DESC, id DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var (
			m      domain.ChatMessage
			sentAt time.Time
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &sentAt, &m.IsRead); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		m.SentAt = sentAt.UTC()
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}

	return messages, nil
}

// MarkConversationRead implements store.ChatMessageStore.MarkConversationRead.
func (s *PostgresChatMessageStore) MarkConversationRead(ctx context.Context, readerID, otherID uuid.UUID) error {
	query := `
		UPDATE chat_messages
		SET is_read = TRUE
		WHERE recipient_id = $1 AND sender_id = $2 AND is_read = FALSE
	`

	if _, err := s.db.ExecContext(ctx, query, readerID, otherID); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", MapError(err))
	}

	return nil
}

// CountUnread implements store.ChatMessageStore.CountUnread.
func (s *PostgresChatMessageStore) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM chat_messages
		WHERE recipient_id = $1 AND is_read = FALSE
	`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread chat messages: %w", MapError(err))
	}

	return count, nil
}

// WithTx implements store.ChatMessageStore.WithTx.
func (s *PostgresChatMessageStore) WithTx(tx *sql.Tx) store.ChatMessageStore {
	return &PostgresChatMessageStore{
		db:     tx,
		logger: s.logger,
	}
}
