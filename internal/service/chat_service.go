package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/push"
	"github.com/taskpilot/taskpilot-api/internal/store"
)

// conversationLimit bounds how much history a conversation read returns.
const conversationLimit = 100

// ChatService runs the chat pipeline. It mirrors the notification pipeline:
// durable write first, then best-effort broker publish and live push, plus a
// message_received notification for the recipient.
type ChatService struct {
	messages      store.ChatMessageStore
	broker        ChatBroker
	pusher        Pusher
	notifications *NotificationService
	logger        *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(
	messages store.ChatMessageStore,
	broker ChatBroker,
	pusher Pusher,
	notifications *NotificationService,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		messages:      messages,
		broker:        broker,
		pusher:        pusher,
		notifications: notifications,
		logger:        logger.With(slog.String("component", "chat_service")),
	}
}

// SendMessage persists and delivers a chat message from sender to recipient.
// The durable write is the commit point; publish, push and the companion
// notification run best-effort after it.
func (s *ChatService) SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (bool, *domain.ChatMessage) {
	m, err := domain.NewChatMessage(senderID, recipientID, content)
	if err != nil {
		s.logger.InfoContext(ctx, "rejected chat message",
			slog.String("sender_id", senderID.String()),
			slog.String("error", err.Error()))
		return false, nil
	}

	if err := s.messages.Create(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "durable chat write failed",
			slog.String("sender_id", senderID.String()),
			slog.String("recipient_id", recipientID.String()),
			slog.String("error", err.Error()))
		return false, nil
	}

	if err := s.broker.PublishChatMessage(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "chat broker publish failed",
			slog.Int64("message_id", m.ID),
			slog.String("error", err.Error()))
	}

	event, err := push.NewEvent(push.EventReceiveChatMessage, push.ReceiveChatMessagePayload{Message: m})
	if err != nil {
		s.logger.ErrorContext(ctx, "chat push serialization failed",
			slog.Int64("message_id", m.ID),
			slog.String("error", err.Error()))
	} else {
		s.pusher.SendToUser(recipientID, event)
	}

	s.notifications.NotifyMessageReceived(ctx, senderID, recipientID)

	return true, m
}

// Conversation returns the message history between the reader and the other
// user, newest first, and marks the other user's messages to the reader as
// read.
func (s *ChatService) Conversation(ctx context.Context, readerID, otherID uuid.UUID) (bool, []*domain.ChatMessage) {
	history, err := s.messages.Conversation(ctx, readerID, otherID, conversationLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "conversation read failed",
			slog.String("reader_id", readerID.String()),
			slog.String("other_id", otherID.String()),
			slog.String("error", err.Error()))
		return false, nil
	}

	if err := s.messages.MarkConversationRead(ctx, readerID, otherID); err != nil {
		s.logger.WarnContext(ctx, "mark conversation read failed",
			slog.String("reader_id", readerID.String()),
			slog.String("error", err.Error()))
	}

	return true, history
}

// UnreadCount returns how many chat messages are waiting for the user.
func (s *ChatService) UnreadCount(ctx context.Context, userID uuid.UUID) (bool, int64) {
	count, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "chat unread count failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return false, 0
	}
	return true, count
}
