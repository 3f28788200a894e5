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

// SessionRepository handles database operations for user sessions
type SessionRepository struct {
	base
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{base{db: db}}
}

func (r *SessionRepository) Insert(ctx context.Context, s *models.Session) error {
	now := time.Now().UTC()
	s.CreatedAt, s.LastActivity = now, now
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, token_id, expires_at, last_activity, is_revoked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, constants.TableSession)
	_, err := r.exec(ctx).ExecContext(ctx, query, s.ID, s.UserID, s.TokenID, s.ExpiresAt, s.LastActivity, s.IsRevoked, s.CreatedAt)
	return err
}

// GetByTokenID looks a session up by the JWT id. Returns nil when unknown.
func (r *SessionRepository) GetByTokenID(ctx context.Context, tokenID string) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, token_id, expires_at, last_activity, is_revoked, created_at
		FROM %s WHERE token_id = ? LIMIT 1`, constants.TableSession)

	var s models.Session
	err := r.exec(ctx).QueryRowContext(ctx, query, tokenID).Scan(
		&s.ID, &s.UserID, &s.TokenID, &s.ExpiresAt, &s.LastActivity, &s.IsRevoked, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, tokenID string) error {
	query := fmt.Sprintf("UPDATE %s SET is_revoked = ? WHERE token_id = ?", constants.TableSession)
	_, err := r.exec(ctx).ExecContext(ctx, query, true, tokenID)
	return err
}

func (r *SessionRepository) Touch(ctx context.Context, tokenID string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET last_activity = ? WHERE token_id = ?", constants.TableSession)
	_, err := r.exec(ctx).ExecContext(ctx, query, at, tokenID)
	return err
}

// DeleteExpired removes sessions that expired before cutoff.
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", constants.TableSession)
	return rowsAffected(r.exec(ctx).ExecContext(ctx, query, cutoff))
}
