package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	assignee := uuid.New()

	task, err := NewTask(creator, assignee, "Ship release", "cut the tag")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Zero(t, task.ID)

	_, err = NewTask(creator, assignee, "", "desc")
	assert.ErrorIs(t, err, ErrEmptyTaskTitle)

	_, err = NewTask(uuid.Nil, assignee, "t", "")
	assert.ErrorIs(t, err, ErrEmptyTaskCreator)

	_, err = NewTask(creator, uuid.Nil, "t", "")
	assert.ErrorIs(t, err, ErrEmptyTaskAssignee)
}

func TestTaskStatusCodes(t *testing.T) {
	t.Parallel()

	for status, code := range map[TaskStatus]string{
		TaskStatusPending:    "pending",
		TaskStatusInProgress: "in_progress",
		TaskStatusCompleted:  "completed",
	} {
		assert.Equal(t, code, status.StorageCode())
		parsed, err := ParseTaskStatus(code)
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}

	_, err := ParseTaskStatus("done")
	assert.ErrorIs(t, err, ErrUnknownTaskStatus)
}

func TestAllowedTaskFields(t *testing.T) {
	t.Parallel()

	creator := &User{ID: uuid.New(), Role: RoleMember}
	admin := &User{ID: uuid.New(), Role: RoleAdmin}
	other := &User{ID: uuid.New(), Role: RoleMember}

	task := &Task{
		ID:         1,
		Title:      "Ship release",
		Status:     TaskStatusPending,
		CreatorID:  creator.ID,
		AssigneeID: other.ID,
	}

	t.Run("creator may change everything", func(t *testing.T) {
		allowed := AllowedTaskFields(creator, task)
		for _, f := range []TaskField{TaskFieldTitle, TaskFieldDescription, TaskFieldStatus, TaskFieldAssignee} {
			assert.True(t, allowed.Contains(f), string(f))
		}
	})

	t.Run("admin who is not creator may only change status", func(t *testing.T) {
		allowed := AllowedTaskFields(admin, task)
		assert.True(t, allowed.Contains(TaskFieldStatus))
		assert.False(t, allowed.Contains(TaskFieldTitle))
		assert.False(t, allowed.Contains(TaskFieldDescription))
		assert.False(t, allowed.Contains(TaskFieldAssignee))
	})

	t.Run("assignee may only change status", func(t *testing.T) {
		allowed := AllowedTaskFields(other, task)
		assert.True(t, allowed.Contains(TaskFieldStatus))
		assert.False(t, allowed.Contains(TaskFieldTitle))
	})
}
