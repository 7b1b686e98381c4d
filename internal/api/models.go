package api

import (
	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email       string `json:"email"        validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
	Password    string `json:"password"     validate:"required,min=12,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID      uuid.UUID   `json:"user_id"`
	DisplayName string      `json:"display_name"`
	Role        domain.Role `json:"role"`
	Token       string      `json:"token"`
}

// CreateTaskRequest defines the payload for task creation.
type CreateTaskRequest struct {
	Title       string    `json:"title"       validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	AssigneeID  uuid.UUID `json:"assignee_id" validate:"required"`
}

// UpdateTaskRequest defines the payload for task updates. Nil fields are left
// untouched; the update policy rejects fields the caller may not change.
type UpdateTaskRequest struct {
	Title       *string            `json:"title,omitempty"       validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status      *domain.TaskStatus `json:"status,omitempty"`
	AssigneeID  *uuid.UUID         `json:"assignee_id,omitempty"`
}

// SendChatRequest defines the payload for sending a chat message.
type SendChatRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" validate:"required"`
	Content     string    `json:"content"      validate:"required,min=1,max=4000"`
}

// NotificationListResponse carries the reconciled notification set.
type NotificationListResponse struct {
	Success       bool                   `json:"success"`
	Notifications []*domain.Notification `json:"notifications"`
}

// UnreadCountResponse carries an unread counter.
type UnreadCountResponse struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

// MarkReadResponse confirms a mark-read operation.
type MarkReadResponse struct {
	Success bool `json:"success"`
}

// ChatMessageResponse carries a sent chat message back to the sender.
type ChatMessageResponse struct {
	Success bool                `json:"success"`
	Message *domain.ChatMessage `json:"message"`
}

// ConversationResponse carries a chat history page.
type ConversationResponse struct {
	Success  bool                  `json:"success"`
	Messages []*domain.ChatMessage `json:"messages"`
}
