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

const webhookLogColumns = "id, webhook_id, event_id, event_type, payload, status, attempts, response_code, response_body, error, next_attempt_at, delivered_at, created_at"

type WebhookLogRepository struct {
	base
}

func NewWebhookLogRepository(db *sql.DB) *WebhookLogRepository {
	return &WebhookLogRepository{base{db: db}}
}

// InsertPending queues a delivery. (webhook_id, event_id) is unique, so fanning
// out the same event twice queues it once.
func (r *WebhookLogRepository) InsertPending(ctx context.Context, l *models.WebhookLog) (bool, error) {
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.NextAttemptAt.IsZero() {
		l.NextAttemptAt = now
	}
	l.Status = constants.WebhookLogPending

	query := fmt.Sprintf(`
		INSERT IGNORE INTO %s (id, webhook_id, event_id, event_type, payload, status, attempts, next_attempt_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`, constants.TableWebhookLog)
	n, err := rowsAffected(r.exec(ctx).ExecContext(ctx, query,
		l.ID, l.WebhookID, l.EventID, l.EventType, []byte(l.Payload), l.Status, l.NextAttemptAt, l.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to queue webhook delivery: %w", err)
	}
	return n > 0, nil
}

// ListDue returns pending deliveries whose next attempt is due.
func (r *WebhookLogRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.WebhookLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC
		LIMIT ?`, webhookLogColumns, constants.TableWebhookLog)
	return r.list(ctx, query, constants.WebhookLogPending, now, limit)
}

// ListByWebhook returns the delivery history of one webhook, newest first.
func (r *WebhookLogRepository) ListByWebhook(ctx context.Context, webhookID string, limit int) ([]models.WebhookLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE webhook_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, webhookLogColumns, constants.TableWebhookLog)
	return r.list(ctx, query, webhookID, limit)
}

func (r *WebhookLogRepository) Get(ctx context.Context, id string) (*models.WebhookLog, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", webhookLogColumns, constants.TableWebhookLog)
	l, err := scanWebhookLog(r.exec(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// Claim moves a pending delivery to sending. Only one worker wins.
func (r *WebhookLogRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("UPDATE %s SET status = ?, next_attempt_at = ? WHERE id = ? AND status = ?", constants.TableWebhookLog)
	n, err := rowsAffected(r.exec(ctx).ExecContext(ctx, query,
		constants.WebhookLogSending, time.Now().UTC(), id, constants.WebhookLogPending))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeliveryResult is what one HTTP attempt produced.
type DeliveryResult struct {
	Attempts     int
	ResponseCode *int
	ResponseBody *string
	Error        *string
}

func (r *WebhookLogRepository) MarkDelivered(ctx context.Context, id string, res DeliveryResult) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, attempts = ?, response_code = ?, response_body = ?, error = NULL, delivered_at = ?
		WHERE id = ?`, constants.TableWebhookLog)
	_, err := r.exec(ctx).ExecContext(ctx, query, constants.WebhookLogDelivered, res.Attempts,
		models.NewNullInt64(res.ResponseCode), models.NewNullString(res.ResponseBody), time.Now().UTC(), id)
	return err
}

// ScheduleRetry puts the delivery back to pending with a later next_attempt_at.
func (r *WebhookLogRepository) ScheduleRetry(ctx context.Context, id string, res DeliveryResult, next time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, attempts = ?, response_code = ?, response_body = ?, error = ?, next_attempt_at = ?
		WHERE id = ?`, constants.TableWebhookLog)
	_, err := r.exec(ctx).ExecContext(ctx, query, constants.WebhookLogPending, res.Attempts,
		models.NewNullInt64(res.ResponseCode), models.NewNullString(res.ResponseBody), models.NewNullString(res.Error), next, id)
	return err
}

func (r *WebhookLogRepository) MarkFailed(ctx context.Context, id string, res DeliveryResult) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, attempts = ?, response_code = ?, response_body = ?, error = ?
		WHERE id = ?`, constants.TableWebhookLog)
	_, err := r.exec(ctx).ExecContext(ctx, query, constants.WebhookLogFailed, res.Attempts,
		models.NewNullInt64(res.ResponseCode), models.NewNullString(res.ResponseBody), models.NewNullString(res.Error), id)
	return err
}

// ReleaseStale returns deliveries stuck in sending (a worker died mid-flight)
// to pending. This is where at-least-once redelivery comes from.
func (r *WebhookLogRepository) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET status = ? WHERE status = ? AND next_attempt_at < ?", constants.TableWebhookLog)
	return rowsAffected(r.exec(ctx).ExecContext(ctx, query, constants.WebhookLogPending, constants.WebhookLogSending, olderThan))
}

// PurgeDelivered deletes delivered logs older than cutoff.
func (r *WebhookLogRepository) PurgeDelivered(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE status = ? AND delivered_at < ?", constants.TableWebhookLog)
	return rowsAffected(r.exec(ctx).ExecContext(ctx, query, constants.WebhookLogDelivered, cutoff))
}

func (r *WebhookLogRepository) list(ctx context.Context, query string, args ...any) ([]models.WebhookLog, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook logs: %w", err)
	}
	defer rows.Close()

	out := []models.WebhookLog{}
	for rows.Next() {
		l, err := scanWebhookLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanWebhookLog(s scanner) (*models.WebhookLog, error) {
	var l models.WebhookLog
	var payload []byte
	var status string
	var code sql.NullInt64
	var body, errMsg sql.NullString
	var delivered sql.NullTime
	if err := s.Scan(&l.ID, &l.WebhookID, &l.EventID, &l.EventType, &payload, &status, &l.Attempts,
		&code, &body, &errMsg, &l.NextAttemptAt, &delivered, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Payload = payload
	l.Status = constants.WebhookLogStatus(status)
	l.ResponseCode = models.NullInt64ToPtr(code)
	l.ResponseBody = models.NullStringToPtr(body)
	l.Error = models.NullStringToPtr(errMsg)
	l.DeliveredAt = models.NullTimeToPtr(delivered)
	return &l, nil
}
