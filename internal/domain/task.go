package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for tasks.
var (
	ErrEmptyTaskTitle    = errors.New("task title cannot be empty")
	ErrEmptyTaskCreator  = errors.New("task creator cannot be empty")
	ErrEmptyTaskAssignee = errors.New("task assignee cannot be empty")
	ErrUnknownTaskStatus = errors.New("unknown task status")
)

// TaskStatus is the closed set of workflow states a task moves through.
type TaskStatus int

const (
	TaskStatusPending TaskStatus = iota + 1
	TaskStatusInProgress
	TaskStatusCompleted
)

var taskStatusCodes = map[TaskStatus]string{
	TaskStatusPending:    "pending",
	TaskStatusInProgress: "in_progress",
	TaskStatusCompleted:  "completed",
}

// StorageCode returns the stable code persisted to the database.
func (s TaskStatus) StorageCode() string {
	if code, ok := taskStatusCodes[s]; ok {
		return code
	}
	return "unknown"
}

// String implements fmt.Stringer using the storage code.
func (s TaskStatus) String() string {
	return s.StorageCode()
}

// Valid reports whether s is one of the defined statuses.
func (s TaskStatus) Valid() bool {
	_, ok := taskStatusCodes[s]
	return ok
}

// ParseTaskStatus converts a storage code back into a TaskStatus.
func ParseTaskStatus(code string) (TaskStatus, error) {
	for s, c := range taskStatusCodes {
		if c == code {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTaskStatus, code)
}

// MarshalText encodes the status as its storage code for JSON transport.
func (s TaskStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTaskStatus, int(s))
	}
	return []byte(s.StorageCode()), nil
}

// UnmarshalText decodes a storage code received over the wire.
func (s *TaskStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Task is a unit of work assigned to a user. Task lifecycle events are what
// drive the notification pipeline.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatorID   uuid.UUID  `json:"creator_id"`
	AssigneeID  uuid.UUID  `json:"assignee_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask builds a pending task owned by creatorID and assigned to assigneeID.
// The ID is zero until the durable store assigns one.
func NewTask(creatorID, assigneeID uuid.UUID, title, description string) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		Title:       title,
		Description: description,
		Status:      TaskStatusPending,
		CreatorID:   creatorID,
		AssigneeID:  assigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks the task's structural invariants.
func (t *Task) Validate() error {
	if t.Title == "" {
		return ErrEmptyTaskTitle
	}
	if t.CreatorID == uuid.Nil {
		return ErrEmptyTaskCreator
	}
	if t.AssigneeID == uuid.Nil {
		return ErrEmptyTaskAssignee
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownTaskStatus, int(t.Status))
	}
	return nil
}

// TaskField names a mutable task attribute for update-policy decisions.
type TaskField string

const (
	TaskFieldTitle       TaskField = "title"
	TaskFieldDescription TaskField = "description"
	TaskFieldStatus      TaskField = "status"
	TaskFieldAssignee    TaskField = "assignee"
)

// FieldSet is the set of task fields an actor may change.
type FieldSet map[TaskField]bool

// Contains reports whether the field is in the set.
func (f FieldSet) Contains(field TaskField) bool {
	return f[field]
}

// AllowedTaskFields is the update policy for tasks, evaluated once per update
// in the service layer rather than re-derived inside data-access code.
//
// The task's creator may change every field. Anyone else - including admins -
// may only move the status, matching the rule that an admin who did not
// create a task cannot rewrite its content.
func AllowedTaskFields(actor *User, task *Task) FieldSet {
	if actor.ID == task.CreatorID {
		return FieldSet{
			TaskFieldTitle:       true,
			TaskFieldDescription: true,
			TaskFieldStatus:      true,
			TaskFieldAssignee:    true,
		}
	}
	return FieldSet{
		TaskFieldStatus: true,
	}
}
