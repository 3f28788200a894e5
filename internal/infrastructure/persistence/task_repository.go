package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

const taskColumns = "id, title, description, status, priority, assignee_id, creator_id, client_id, deal_id, due_at, completed_at, overdue_flagged_at, created_at, updated_at"

type TaskRepository struct {
	base
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{base{db: db}}
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	t.Touch(time.Now())
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableTask, taskColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query, taskArgs(t)...)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Get returns the task, or nil. Inside a transaction the row is locked.
func (r *TaskRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", taskColumns, constants.TableTask)
	if TxFromContext(ctx) != nil {
		query += " FOR UPDATE"
	}
	t, err := scanTask(r.exec(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	t.Touch(time.Now())
	query := fmt.Sprintf(`
		UPDATE %s SET title = ?, description = ?, status = ?, priority = ?, assignee_id = ?,
			client_id = ?, deal_id = ?, due_at = ?, completed_at = ?, overdue_flagged_at = ?, updated_at = ?
		WHERE id = ?`, constants.TableTask)
	_, err := r.exec(ctx).ExecContext(ctx, query,
		t.Title, models.NewNullString(t.Description), string(t.Status), string(t.Priority),
		models.NewNullString(t.AssigneeID), models.NewNullString(t.ClientID), models.NewNullString(t.DealID),
		models.NewNullTime(t.DueAt), models.NewNullTime(t.CompletedAt), models.NewNullTime(t.OverdueFlagAt),
		t.UpdatedAt, t.ID)
	return err
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableTask)
	_, err := r.exec(ctx).ExecContext(ctx, query, id)
	return err
}

// ListOverdueUnflagged finds open tasks past due that have not been flagged yet.
func (r *TaskRepository) ListOverdueUnflagged(ctx context.Context, now time.Time, limit int) ([]models.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE due_at < ? AND status <> ? AND overdue_flagged_at IS NULL
		ORDER BY due_at ASC
		LIMIT ?`, taskColumns, constants.TableTask)

	rows, err := r.exec(ctx).QueryContext(ctx, query, now, string(constants.TaskStatusDone), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue tasks: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// FlagOverdue stamps overdue_flagged_at. It returns false if another scanner
// flagged the task first.
func (r *TaskRepository) FlagOverdue(ctx context.Context, id string, at time.Time) (bool, error) {
	query := fmt.Sprintf("UPDATE %s SET overdue_flagged_at = ? WHERE id = ? AND overdue_flagged_at IS NULL", constants.TableTask)
	n, err := rowsAffected(r.exec(ctx).ExecContext(ctx, query, at, id))
	return n == 1, err
}

func taskArgs(t *models.Task) []any {
	return []any{
		t.ID, t.Title, models.NewNullString(t.Description), string(t.Status), string(t.Priority),
		models.NewNullString(t.AssigneeID), t.CreatorID, models.NewNullString(t.ClientID), models.NewNullString(t.DealID),
		models.NewNullTime(t.DueAt), models.NewNullTime(t.CompletedAt), models.NewNullTime(t.OverdueFlagAt),
		t.CreatedAt, t.UpdatedAt,
	}
}

func scanTask(s scanner) (*models.Task, error) {
	var t models.Task
	var desc, assignee, client, deal sql.NullString
	var status, priority string
	var due, completed, flagged sql.NullTime
	if err := s.Scan(&t.ID, &t.Title, &desc, &status, &priority, &assignee, &t.CreatorID,
		&client, &deal, &due, &completed, &flagged, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Description = models.NullStringToPtr(desc)
	t.Status = constants.TaskStatus(status)
	t.Priority = constants.TaskPriority(priority)
	t.AssigneeID = models.NullStringToPtr(assignee)
	t.ClientID = models.NullStringToPtr(client)
	t.DealID = models.NullStringToPtr(deal)
	t.DueAt = models.NullTimeToPtr(due)
	t.CompletedAt = models.NullTimeToPtr(completed)
	t.OverdueFlagAt = models.NullTimeToPtr(flagged)
	return &t, nil
}
