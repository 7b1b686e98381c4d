package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for chat messages.
var (
	ErrEmptyChatContent   = errors.New("chat message content cannot be empty")
	ErrEmptyChatSender    = errors.New("chat message sender cannot be empty")
	ErrEmptyChatRecipient = errors.New("chat message recipient cannot be empty")
	ErrSelfChat           = errors.New("chat sender and recipient must differ")
)

// ChatMessage is a direct message between two users. It rides the same
// store/broker/cache/push pipeline as notifications, partitioned by the
// recipient for delivery and by the unordered user pair for history reads.
type ChatMessage struct {
	ID          int64     `json:"id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Content     string    `json:"content"`
	SentAt      time.Time `json:"timestamp"`
	IsRead      bool      `json:"is_read"`
}

// NewChatMessage builds an unread chat message. The ID is zero until the
// durable store assigns one.
func NewChatMessage(senderID, recipientID uuid.UUID, content string) (*ChatMessage, error) {
	m := &ChatMessage{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		SentAt:      time.Now().UTC(),
		IsRead:      false,
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Validate checks the message's structural invariants.
func (m *ChatMessage) Validate() error {
	if m.SenderID == uuid.Nil {
		return ErrEmptyChatSender
	}
	if m.RecipientID == uuid.Nil {
		return ErrEmptyChatRecipient
	}
	if m.SenderID == m.RecipientID {
		return ErrSelfChat
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyChatContent
	}
	return nil
}

// ConversationKey returns a deterministic identifier for the unordered pair
// of participants, so both sides of a conversation resolve to the same key
// regardless of who is sender and who is recipient.
func ConversationKey(a, b uuid.UUID) string {
	first, second := a.String(), b.String()
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}
	return first + ":" + second
}
