package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationTypeCodes(t *testing.T) {
	t.Parallel()

	cases := map[NotificationType]string{
		NotificationTaskCreated:     "task_created",
		NotificationTaskUpdated:     "task_updated",
		NotificationTaskDeleted:     "task_deleted",
		NotificationUserRegistered:  "user_registered",
		NotificationMessageReceived: "message_received",
	}

	for typ, code := range cases {
		assert.Equal(t, code, typ.StorageCode())
		assert.True(t, typ.Valid())

		parsed, err := ParseNotificationType(code)
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	_, err := ParseNotificationType("TASK_CREATED")
	assert.ErrorIs(t, err, ErrUnknownNotificationType, "codes are case-sensitive")

	assert.Equal(t, "unknown", NotificationType(0).StorageCode())
	assert.False(t, NotificationType(99).Valid())
}

func TestRenderMessage(t *testing.T) {
	t.Parallel()

	actor := uuid.New()
	recipient := uuid.New()

	t.Run("task created", func(t *testing.T) {
		msg := RenderMessage(NotificationTaskCreated, actor, recipient, "Ship release")
		assert.Equal(t, "New task 'Ship release' was assigned to you", msg)
	})

	t.Run("task updated by other user", func(t *testing.T) {
		msg := RenderMessage(NotificationTaskUpdated, actor, recipient, "Ship release")
		assert.Equal(t, "Task 'Ship release' was recently updated by user: "+actor.String(), msg)
	})

	t.Run("actor collapses to you", func(t *testing.T) {
		msg := RenderMessage(NotificationTaskUpdated, actor, actor, "Ship release")
		assert.Equal(t, "Task 'Ship release' was recently updated by you", msg)
	})

	t.Run("task deleted", func(t *testing.T) {
		msg := RenderMessage(NotificationTaskDeleted, actor, recipient, "Old task")
		assert.Equal(t, "Task 'Old task' was deleted by user: "+actor.String(), msg)
	})

	t.Run("user registered", func(t *testing.T) {
		assert.Equal(t, "New user registered",
			RenderMessage(NotificationUserRegistered, actor, recipient, ""))
	})

	t.Run("message received", func(t *testing.T) {
		assert.Equal(t, "New message received",
			RenderMessage(NotificationMessageReceived, actor, recipient, ""))
	})

	t.Run("unknown type falls back", func(t *testing.T) {
		assert.Equal(t, "Task 'X' event occurred",
			RenderMessage(NotificationType(42), actor, recipient, "X"))
	})
}

func TestNewNotification(t *testing.T) {
	t.Parallel()

	actor := uuid.New()
	recipient := uuid.New()
	taskID := int64(7)

	n, err := NewNotification(NotificationTaskCreated, actor, recipient, &taskID, "Ship release")
	require.NoError(t, err)

	assert.Zero(t, n.ID, "id is assigned by the store")
	assert.False(t, n.IsRead)
	assert.Equal(t, recipient, n.RecipientID)
	assert.Equal(t, "New task 'Ship release' was assigned to you", n.Message)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	_, err := NewNotification(NotificationType(99), uuid.New(), uuid.New(), nil, "x")
	assert.ErrorIs(t, err, ErrUnknownNotificationType)

	_, err = NewNotification(NotificationTaskCreated, uuid.New(), uuid.Nil, nil, "x")
	assert.ErrorIs(t, err, ErrEmptyRecipient)

	bad := &Notification{Type: NotificationTaskCreated, RecipientID: uuid.New()}
	assert.ErrorIs(t, bad.Validate(), ErrEmptyMessage)
}

func TestNotificationJSONRoundTrip(t *testing.T) {
	t.Parallel()

	taskID := int64(12)
	original, err := NewNotification(
		NotificationTaskUpdated, uuid.New(), uuid.New(), &taskID, "Ship release")
	require.NoError(t, err)
	original.ID = 42
	original.IsRead = true

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Notification
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.RecipientID, decoded.RecipientID)
	assert.Equal(t, original.IsRead, decoded.IsRead)
	assert.Equal(t, original.Message, decoded.Message)
	require.NotNil(t, decoded.TaskID)
	assert.Equal(t, taskID, *decoded.TaskID)
}

func TestNotificationUnknownFieldTolerance(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":1,"type":"task_created","recipient_user_id":"` +
		uuid.New().String() + `","message":"m","is_read":false,"some_future_field":"x"}`)

	var decoded Notification
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, int64(1), decoded.ID)
	assert.Equal(t, NotificationTaskCreated, decoded.Type)
}
