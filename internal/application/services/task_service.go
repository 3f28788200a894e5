package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

// TaskInput is the body of a create request.
type TaskInput struct {
	ID          string                 `json:"-"`
	Title       string                 `json:"title"`
	Description *string                `json:"description,omitempty"`
	Status      constants.TaskStatus   `json:"status,omitempty"`
	Priority    constants.TaskPriority `json:"priority,omitempty"`
	AssigneeID  *string                `json:"assignee_id,omitempty"`
	ClientID    *string                `json:"client_id,omitempty"`
	DealID      *string                `json:"deal_id,omitempty"`
	DueAt       *time.Time             `json:"due_at,omitempty"`
}

// TaskPatch is the body of an update request. Nil fields are left alone.
type TaskPatch struct {
	Title       *string                 `json:"title,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Status      *constants.TaskStatus   `json:"status,omitempty"`
	Priority    *constants.TaskPriority `json:"priority,omitempty"`
	DueAt       *time.Time              `json:"due_at,omitempty"`
}

// TaskService changes task state and raises task events.
type TaskService struct {
	tasks      TaskStore
	users      UserStore
	tx         TxRunner
	dispatcher ports.EventDispatcher
	now        func() time.Time
	logger     *slog.Logger
}

func NewTaskService(tasks TaskStore, users UserStore, tx TxRunner, dispatcher ports.EventDispatcher, logger *slog.Logger) *TaskService {
	return &TaskService{
		tasks:      tasks,
		users:      users,
		tx:         tx,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

func taskPayload(t *models.Task) map[string]any {
	return map[string]any{events.KeyTask: t}
}

func (s *TaskService) Create(ctx context.Context, actor *auth.UserSession, in TaskInput) (*models.Task, error) {
	title, err := checkLabel("title", in.Title)
	if err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = constants.TaskStatusTodo
	}
	if !in.Status.Valid() {
		return nil, apperrors.NewValidationError("status", "must be todo, in_progress or done")
	}
	if in.Priority == "" {
		in.Priority = constants.TaskPriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, apperrors.NewValidationError("priority", "must be low, medium, high or urgent")
	}
	if in.AssigneeID != nil && *in.AssigneeID == "" {
		in.AssigneeID = nil
	}

	id := in.ID
	if id == "" {
		id = utils.GenerateID()
	}
	creator := ""
	if actor != nil {
		creator = actor.ID
	}
	task := &models.Task{
		ID:          id,
		Title:       title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeID:  in.AssigneeID,
		CreatorID:   creator,
		ClientID:    in.ClientID,
		DealID:      in.DealID,
		DueAt:       in.DueAt,
	}
	if task.Status == constants.TaskStatusDone {
		task.CompletedAt = utils.Ptr(s.now())
	}

	err = mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		if err := s.checkAssignee(ctx, task.AssigneeID); err != nil {
			return nil, err
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			return nil, err
		}
		ev, err := newEvent(ctx, events.TaskCreated, actor, constants.SubjectTask, task.ID, taskPayload(task))
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Update applies a patch. Nothing is written and no event is raised when the
// patch changes nothing. Moving to done also raises task.completed.
func (s *TaskService) Update(ctx context.Context, actor *auth.UserSession, id string, patch TaskPatch) (*models.Task, error) {
	if patch.Title != nil {
		title, err := checkLabel("title", *patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperrors.NewValidationError("status", "must be todo, in_progress or done")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, apperrors.NewValidationError("priority", "must be low, medium, high or urgent")
	}

	var task *models.Task
	err := mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		var err error
		if task, err = s.load(ctx, actor, id); err != nil {
			return nil, err
		}

		changes := Changes{}
		if patch.Title != nil {
			changes.Track("title", task.Title, *patch.Title)
			task.Title = *patch.Title
		}
		if patch.Description != nil {
			changes.Track("description", task.Description, patch.Description)
			task.Description = patch.Description
		}
		if patch.Priority != nil {
			changes.Track("priority", task.Priority, *patch.Priority)
			task.Priority = *patch.Priority
		}
		if patch.DueAt != nil {
			changes.Track("due_at", task.DueAt, patch.DueAt)
			if task.DueAt == nil || !task.DueAt.Equal(*patch.DueAt) {
				task.OverdueFlagAt = nil
			}
			task.DueAt = patch.DueAt
		}
		completed := false
		if patch.Status != nil {
			changes.Track("status", task.Status, *patch.Status)
			if *patch.Status == constants.TaskStatusDone && task.Status != constants.TaskStatusDone {
				task.CompletedAt = utils.Ptr(s.now())
				completed = true
			} else if *patch.Status != constants.TaskStatusDone {
				task.CompletedAt = nil
			}
			task.Status = *patch.Status
		}

		if changes.Empty() {
			return nil, nil
		}
		if err := s.tasks.Update(ctx, task); err != nil {
			return nil, err
		}

		payload := taskPayload(task)
		payload[events.KeyChanges] = changes.Payload()
		updated, err := newEvent(ctx, events.TaskUpdated, actor, constants.SubjectTask, task.ID, payload)
		if err != nil {
			return nil, err
		}
		evs := []*events.Event{updated}
		if completed {
			done, err := newEvent(ctx, events.TaskCompleted, actor, constants.SubjectTask, task.ID, taskPayload(task))
			if err != nil {
				return nil, err
			}
			evs = append(evs, done)
		}
		return evs, nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Assign changes the assignee. An empty assigneeID unassigns the task.
func (s *TaskService) Assign(ctx context.Context, actor *auth.UserSession, id, assigneeID string) (*models.Task, error) {
	var next *string
	if assigneeID != "" {
		next = &assigneeID
	}

	var task *models.Task
	err := mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		var err error
		if task, err = s.load(ctx, actor, id); err != nil {
			return nil, err
		}
		previous := task.AssigneeOrEmpty()
		if previous == assigneeID {
			return nil, nil
		}
		if err := s.checkAssignee(ctx, next); err != nil {
			return nil, err
		}

		task.AssigneeID = next
		if err := s.tasks.Update(ctx, task); err != nil {
			return nil, err
		}

		payload := taskPayload(task)
		payload[events.KeyPreviousAssignee] = previous
		ev, err := newEvent(ctx, events.TaskAssigned, actor, constants.SubjectTask, task.ID, payload)
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// SetPriority is the automation entry point for priority changes. It raises
// task.updated like any other update.
func (s *TaskService) SetPriority(ctx context.Context, actor *auth.UserSession, id string, p constants.TaskPriority) (*models.Task, error) {
	return s.Update(ctx, actor, id, TaskPatch{Priority: &p})
}

// Complete marks the task done. Completing a done task is a conflict.
func (s *TaskService) Complete(ctx context.Context, actor *auth.UserSession, id string) (*models.Task, error) {
	var task *models.Task
	err := mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		var err error
		if task, err = s.load(ctx, actor, id); err != nil {
			return nil, err
		}
		if task.Status == constants.TaskStatusDone {
			return nil, apperrors.NewConflictError("task", "already completed")
		}

		task.Status = constants.TaskStatusDone
		task.CompletedAt = utils.Ptr(s.now())
		if err := s.tasks.Update(ctx, task); err != nil {
			return nil, err
		}
		ev, err := newEvent(ctx, events.TaskCompleted, actor, constants.SubjectTask, task.ID, taskPayload(task))
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, actor *auth.UserSession, id string) error {
	return mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		task, err := s.load(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		if err := s.tasks.Delete(ctx, id); err != nil {
			return nil, err
		}
		ev, err := newEvent(ctx, events.TaskDeleted, actor, constants.SubjectTask, task.ID, taskPayload(task))
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
}

// FlagOverdue flags open tasks that are past due and raises task.overdue once
// per task. It returns how many tasks were flagged.
func (s *TaskService) FlagOverdue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	due, err := s.tasks.ListOverdueUnflagged(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for i := range due {
		task := &due[i]
		claimed := false
		err := mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
			ok, err := s.tasks.FlagOverdue(ctx, task.ID, now)
			if err != nil || !ok {
				return nil, err
			}
			task.OverdueFlagAt = &now
			ev, err := newEvent(ctx, events.TaskOverdue, nil, constants.SubjectTask, task.ID, taskPayload(task))
			if err != nil {
				return nil, err
			}
			claimed = true
			return []*events.Event{ev}, nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to flag overdue task", "task_id", task.ID, "error", err)
			continue
		}
		if claimed {
			flagged++
		}
	}
	return flagged, nil
}

// load fetches a task the actor may change: its creator, its assignee, an
// admin, or the system.
func (s *TaskService) load(ctx context.Context, actor *auth.UserSession, id string) (*models.Task, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperrors.NewNotFoundError("task", id)
	}
	if actor != nil && !actor.IsAdmin() && actor.ID != task.CreatorID && actor.ID != task.AssigneeOrEmpty() {
		return nil, apperrors.NewPermissionError("modify", "task")
	}
	return task, nil
}

func (s *TaskService) checkAssignee(ctx context.Context, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	u, err := s.users.FindByID(ctx, *assigneeID)
	if err != nil {
		return err
	}
	if u == nil || !u.IsActive {
		return apperrors.NewValidationError("assignee_id", "unknown or inactive user")
	}
	return nil
}
