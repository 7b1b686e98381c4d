package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
)

// ChatMessageStore defines the interface for chat message persistence.
type ChatMessageStore interface {
	// Create saves a new chat message and assigns its ID from the database
	// sequence, writing it back into the passed message.
	Create(ctx context.Context, m *domain.ChatMessage) error

	// Conversation returns up to limit messages exchanged between the two
	// users (in either direction), newest first.
	Conversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*domain.ChatMessage, error)

	// MarkConversationRead marks every message sent by otherID to readerID
	// as read. Succeeds with no effect when nothing is unread.
	MarkConversationRead(ctx context.Context, readerID, otherID uuid.UUID) error

	// CountUnread returns the number of unread messages addressed to the user.
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)

	// WithTx returns a new ChatMessageStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) ChatMessageStore
}
