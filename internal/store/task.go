package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
)

// TaskStore defines the interface for task persistence.
type TaskStore interface {
	// Create saves a new task and assigns its ID from the database sequence,
	// writing it back into the passed task.
	Create(ctx context.Context, t *domain.Task) error

	// GetByID retrieves a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// ListForUser returns tasks the user created or is assigned to,
	// newest first.
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error)

	// Update persists the task's mutable fields.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, t *domain.Task) error

	// Delete removes a task.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id int64) error

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) TaskStore
}
