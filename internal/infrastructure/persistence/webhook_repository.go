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

const webhookColumns = "id, owner_id, url, event_types, secret, is_active, consecutive_failures, created_at, updated_at"

type WebhookRepository struct {
	base
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{base{db: db}}
}

func (r *WebhookRepository) Create(ctx context.Context, w *models.Webhook) error {
	w.Touch(time.Now())
	types, err := marshalJSON(w.EventTypes)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableWebhook, webhookColumns)
	_, err = r.exec(ctx).ExecContext(ctx, query,
		w.ID, w.OwnerID, w.URL, types, w.Secret, w.IsActive, w.ConsecutiveFailures, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// Get returns the webhook, or nil when it does not exist.
func (r *WebhookRepository) Get(ctx context.Context, id string) (*models.Webhook, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", webhookColumns, constants.TableWebhook)
	w, err := scanWebhook(r.exec(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (r *WebhookRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Webhook, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = ? ORDER BY created_at DESC", webhookColumns, constants.TableWebhook)
	return r.list(ctx, query, ownerID)
}

// ListActive returns every active webhook. Event type matching happens in
// memory since event_types is a JSON array.
func (r *WebhookRepository) ListActive(ctx context.Context) ([]models.Webhook, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE is_active = ?", webhookColumns, constants.TableWebhook)
	return r.list(ctx, query, true)
}

func (r *WebhookRepository) Update(ctx context.Context, w *models.Webhook) error {
	w.Touch(time.Now())
	types, err := marshalJSON(w.EventTypes)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET url = ?, event_types = ?, is_active = ?, consecutive_failures = ?, updated_at = ?
		WHERE id = ?`, constants.TableWebhook)
	_, err = r.exec(ctx).ExecContext(ctx, query, w.URL, types, w.IsActive, w.ConsecutiveFailures, w.UpdatedAt, w.ID)
	return err
}

func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableWebhook)
	_, err := r.exec(ctx).ExecContext(ctx, query, id)
	return err
}

// ResetFailures clears the failure streak after a successful delivery.
func (r *WebhookRepository) ResetFailures(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET consecutive_failures = 0 WHERE id = ? AND consecutive_failures <> 0", constants.TableWebhook)
	_, err := r.exec(ctx).ExecContext(ctx, query, id)
	return err
}

// RecordFailure bumps the failure streak and deactivates the webhook once it
// reaches threshold. It returns the new streak and whether this call
// deactivated it.
func (r *WebhookRepository) RecordFailure(ctx context.Context, id string, threshold int) (failures int, deactivated bool, err error) {
	bump := fmt.Sprintf("UPDATE %s SET consecutive_failures = consecutive_failures + 1, updated_at = ? WHERE id = ?", constants.TableWebhook)
	if _, err = r.exec(ctx).ExecContext(ctx, bump, time.Now().UTC(), id); err != nil {
		return 0, false, err
	}

	var active bool
	read := fmt.Sprintf("SELECT consecutive_failures, is_active FROM %s WHERE id = ?", constants.TableWebhook)
	if err = r.exec(ctx).QueryRowContext(ctx, read, id).Scan(&failures, &active); err != nil {
		return 0, false, err
	}

	if active && failures >= threshold {
		off := fmt.Sprintf("UPDATE %s SET is_active = ?, updated_at = ? WHERE id = ?", constants.TableWebhook)
		if _, err = r.exec(ctx).ExecContext(ctx, off, false, time.Now().UTC(), id); err != nil {
			return failures, false, err
		}
		deactivated = true
	}
	return failures, deactivated, nil
}

func (r *WebhookRepository) list(ctx context.Context, query string, args ...any) ([]models.Webhook, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}
	defer rows.Close()

	out := []models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func scanWebhook(s scanner) (*models.Webhook, error) {
	var w models.Webhook
	var types []byte
	if err := s.Scan(&w.ID, &w.OwnerID, &w.URL, &types, &w.Secret, &w.IsActive,
		&w.ConsecutiveFailures, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	et, err := unmarshalJSON[[]string](types)
	if err != nil {
		return nil, fmt.Errorf("webhook %s: bad event_types: %w", w.ID, err)
	}
	w.EventTypes = et
	return &w, nil
}
