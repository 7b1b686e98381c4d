package service

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

// taskListLimit bounds how many tasks a list call returns.
const taskListLimit = 100

// TaskUpdate carries the fields of a task update request. Nil fields are
// left untouched, which lets the update policy distinguish "not sent" from
// "sent but unchanged".
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	AssigneeID  *uuid.UUID
}

// TaskService owns task CRUD and the fan-out triggers attached to it. Every
// mutation that survives the durable write produces notifications through
// the orchestrator.
type TaskService struct {
	tasks         store.TaskStore
	users         store.UserStore
	txr           store.Transactor
	notifications *NotificationService
	logger        *slog.Logger
}

// NewTaskService creates a TaskService.
func NewTaskService(
	tasks store.TaskStore,
	users store.UserStore,
	txr store.Transactor,
	notifications *NotificationService,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		tasks:         tasks,
		users:         users,
		txr:           txr,
		notifications: notifications,
		logger:        logger.With(slog.String("component", "task_service")),
	}
}

// CreateTask persists a new pending task and notifies the assignee.
func (s *TaskService) CreateTask(ctx context.Context, actorID, assigneeID uuid.UUID, title, description string) (*domain.Task, error) {
	t, err := domain.NewTask(actorID, assigneeID, title, description)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.notifications.SendTaskNotification(ctx, domain.NotificationTaskCreated, actorID, assigneeID, &t.ID, t.Title)

	return t, nil
}

// GetTask retrieves a task by id.
func (s *TaskService) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// ListTasks returns the tasks the user created or is assigned to.
func (s *TaskService) ListTasks(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return s.tasks.ListForUser(ctx, userID, taskListLimit)
}

// UpdateTask applies an update on behalf of the actor. The update policy is
// evaluated once against the task's current state: any requested field
// outside the actor's allowed set fails the whole update with
// ErrFieldNotAllowed before anything is written. The read and write share a
// transaction so a concurrent update cannot slip between them. On success
// the assignee is notified, and so is the creator when someone else made the
// change.
func (s *TaskService) UpdateTask(ctx context.Context, actorID uuid.UUID, taskID int64, update TaskUpdate) (*domain.Task, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor: %w", err)
	}

	var t *domain.Task
	err = s.txr.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		t, err = tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}

		allowed := domain.AllowedTaskFields(actor, t)

		if update.Title != nil {
			if !allowed.Contains(domain.TaskFieldTitle) {
				return fmt.Errorf("%w: title", ErrFieldNotAllowed)
			}
			t.Title = *update.Title
		}
		if update.Description != nil {
			if !allowed.Contains(domain.TaskFieldDescription) {
				return fmt.Errorf("%w: description", ErrFieldNotAllowed)
			}
			t.Description = *update.Description
		}
		if update.Status != nil {
			if !allowed.Contains(domain.TaskFieldStatus) {
				return fmt.Errorf("%w: status", ErrFieldNotAllowed)
			}
			t.Status = *update.Status
		}
		if update.AssigneeID != nil {
			if !allowed.Contains(domain.TaskFieldAssignee) {
				return fmt.Errorf("%w: assignee", ErrFieldNotAllowed)
			}
			t.AssigneeID = *update.AssigneeID
		}

		if err := t.Validate(); err != nil {
			return err
		}
		t.UpdatedAt = time.Now().UTC()

		return tasks.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.notifyMutation(ctx, domain.NotificationTaskUpdated, actorID, t)

	return t, nil
}

// DeleteTask removes a task. Only the creator or an admin may delete; the
// assignee (and the creator, when an admin deleted someone else's task) is
// told the task is gone.
func (s *TaskService) DeleteTask(ctx context.Context, actorID uuid.UUID, taskID int64) error {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to resolve actor: %w", err)
	}

	var t *domain.Task
	err = s.txr.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		t, err = tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}

		if actor.ID != t.CreatorID && !actor.IsAdmin() {
			return ErrNotAuthorized
		}

		if err := tasks.Delete(ctx, taskID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifyMutation(ctx, domain.NotificationTaskDeleted, actorID, t)

	return nil
}

// notifyMutation fans a task mutation out to the assignee, plus the creator
// when the change came from someone else. Duplicate recipients collapse to
// a single notification.
func (s *TaskService) notifyMutation(ctx context.Context, typ domain.NotificationType, actorID uuid.UUID, t *domain.Task) {
	s.notifications.SendTaskNotification(ctx, typ, actorID, t.AssigneeID, &t.ID, t.Title)

	if t.CreatorID != actorID && t.CreatorID != t.AssigneeID {
		s.notifications.SendTaskNotification(ctx, typ, actorID, t.CreatorID, &t.ID, t.Title)
	}
}
