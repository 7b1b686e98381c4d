package rabbitmq

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQueueAndRoutingKeyNames(t *testing.T) {
	userID := uuid.MustParse("a1b2c3d4-e5f6-4789-8abc-def012345678")

	assert.Equal(t, "user_a1b2c3d4-e5f6-4789-8abc-def012345678_notifications", NotificationQueueName(userID))
	assert.Equal(t, "user_a1b2c3d4-e5f6-4789-8abc-def012345678", NotificationRoutingKey(userID))
	assert.Equal(t, "chat_user_a1b2c3d4-e5f6-4789-8abc-def012345678", ChatQueueName(userID))
	assert.Equal(t, "chat_user_a1b2c3d4-e5f6-4789-8abc-def012345678", ChatRoutingKey(userID))
}

func TestRoutingKeysDoNotCrossDeliver(t *testing.T) {
	userID := uuid.New()

	// The two pipelines bind under different keys on the same exchange, so a
	// notification publish can never land in the chat queue or vice versa.
	assert.NotEqual(t, NotificationRoutingKey(userID), ChatRoutingKey(userID))
}

func TestQueueNamesArePerUser(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	assert.NotEqual(t, NotificationQueueName(first), NotificationQueueName(second))
	assert.NotEqual(t, ChatQueueName(first), ChatQueueName(second))
}
