package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

const notificationColumns = "id, recipient_id, type, title, body, link, event_id, is_read, read_at, created_at"

type NotificationRepository struct {
	base
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{base{db: db}}
}

// Insert writes a notification. (recipient_id, event_id) is unique so a
// replayed event does not notify twice.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) (bool, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`
		INSERT IGNORE INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableNotification, notificationColumns)

	affected, err := rowsAffected(r.exec(ctx).ExecContext(ctx, query,
		n.ID, n.RecipientID, n.Type, n.Title, n.Body, n.Link, n.EventID, n.IsRead,
		models.NewNullTime(n.ReadAt), n.CreatedAt,
	))
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}
	return affected > 0, nil
}

// ListForRecipient returns a user's notifications, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE recipient_id = ?", notificationColumns, constants.TableNotification)
	args := []any{recipientID}
	if unreadOnly {
		query += " AND is_read = ?"
		args = append(args, false)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Body, &n.Link,
			&n.EventID, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ReadAt = models.NullTimeToPtr(readAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE recipient_id = ? AND is_read = ?", constants.TableNotification)
	var count int
	err := r.exec(ctx).QueryRowContext(ctx, query, recipientID, false).Scan(&count)
	return count, err
}

// MarkRead marks one notification read. Only the recipient's own rows match;
// found is false otherwise.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (found bool, err error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
		UPDATE %s SET is_read = ?, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND recipient_id = ?`, constants.TableNotification)
	if _, err := r.exec(ctx).ExecContext(ctx, query, true, now, id, recipientID); err != nil {
		return false, err
	}

	// Rows affected is 0 for an already-read row, so check existence separately.
	exists := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ? AND recipient_id = ?)", constants.TableNotification)
	err = r.exec(ctx).QueryRowContext(ctx, exists, id, recipientID).Scan(&found)
	return found, err
}

// MarkAllRead marks every unread notification of the recipient read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET is_read = ?, read_at = ?
		WHERE recipient_id = ? AND is_read = ?`, constants.TableNotification)
	return rowsAffected(r.exec(ctx).ExecContext(ctx, query, true, time.Now().UTC(), recipientID, false))
}
