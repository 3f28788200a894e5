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

const automationColumns = "id, name, trigger_event, `condition`, action, action_config, is_active, priority, created_by, created_at, updated_at"

type AutomationRepository struct {
	base
}

func NewAutomationRepository(db *sql.DB) *AutomationRepository {
	return &AutomationRepository{base{db: db}}
}

func (r *AutomationRepository) Create(ctx context.Context, a *models.TaskAutomation) error {
	a.Touch(time.Now())
	cfg, err := marshalJSON(a.ActionConfig)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableTaskAutomation, automationColumns)
	_, err = r.exec(ctx).ExecContext(ctx, query,
		a.ID, a.Name, a.TriggerEvent, a.Condition, string(a.Action), cfg, a.IsActive, a.Priority,
		models.NewNullString(a.CreatedBy), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create automation: %w", err)
	}
	return nil
}

func (r *AutomationRepository) Get(ctx context.Context, id string) (*models.TaskAutomation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", automationColumns, constants.TableTaskAutomation)
	a, err := scanAutomation(r.exec(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *AutomationRepository) List(ctx context.Context) ([]models.TaskAutomation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY priority ASC, created_at ASC", automationColumns, constants.TableTaskAutomation)
	return r.list(ctx, query)
}

// ListActiveByTrigger returns the active rules for an event in evaluation
// order: priority ascending, then oldest first.
func (r *AutomationRepository) ListActiveByTrigger(ctx context.Context, trigger string) ([]models.TaskAutomation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE trigger_event = ? AND is_active = ?
		ORDER BY priority ASC, created_at ASC`, automationColumns, constants.TableTaskAutomation)
	return r.list(ctx, query, trigger, true)
}

func (r *AutomationRepository) Update(ctx context.Context, a *models.TaskAutomation) error {
	a.Touch(time.Now())
	cfg, err := marshalJSON(a.ActionConfig)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET name = ?, trigger_event = ?, `condition` = ?, action = ?, action_config = ?, is_active = ?, priority = ?, updated_at = ? WHERE id = ?",
		constants.TableTaskAutomation)
	_, err = r.exec(ctx).ExecContext(ctx, query,
		a.Name, a.TriggerEvent, a.Condition, string(a.Action), cfg, a.IsActive, a.Priority, a.UpdatedAt, a.ID)
	return err
}

func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableTaskAutomation)
	_, err := r.exec(ctx).ExecContext(ctx, query, id)
	return err
}

func (r *AutomationRepository) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", constants.TableTaskAutomation)
	var n int
	err := r.exec(ctx).QueryRowContext(ctx, query).Scan(&n)
	return n, err
}

func (r *AutomationRepository) list(ctx context.Context, query string, args ...any) ([]models.TaskAutomation, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}
	defer rows.Close()

	out := []models.TaskAutomation{}
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAutomation(s scanner) (*models.TaskAutomation, error) {
	var a models.TaskAutomation
	var action string
	var cfg []byte
	var createdBy sql.NullString
	if err := s.Scan(&a.ID, &a.Name, &a.TriggerEvent, &a.Condition, &action, &cfg, &a.IsActive,
		&a.Priority, &createdBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Action = constants.AutomationAction(action)
	a.CreatedBy = models.NullStringToPtr(createdBy)
	m, err := unmarshalJSON[map[string]any](cfg)
	if err != nil {
		return nil, fmt.Errorf("automation %s: bad action_config: %w", a.ID, err)
	}
	a.ActionConfig = m
	return &a, nil
}
