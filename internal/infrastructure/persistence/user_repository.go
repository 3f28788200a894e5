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

const userColumns = "id, name, email, password_hash, role, is_active, last_login_at, created_at, updated_at"

type UserRepository struct {
	base
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{base{db: db}}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	u.Touch(time.Now())
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableUser, userColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.IsActive,
		models.NewNullTime(u.LastLoginAt), u.CreatedAt, u.UpdatedAt)
	return err
}

// FindByEmail returns the user, or nil when no user has that email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE email = ?", userColumns, constants.TableUser)
	return r.findOne(ctx, query, email)
}

// FindByID returns the user, or nil.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", userColumns, constants.TableUser)
	return r.findOne(ctx, query, id)
}

// CheckUserExistsByEmail checks if a user with the given email exists
func (r *UserRepository) CheckUserExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE email = ?)", constants.TableUser)
	var exists bool
	err := r.exec(ctx).QueryRowContext(ctx, query, email).Scan(&exists)
	return exists, err
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET last_login_at = ? WHERE id = ?", constants.TableUser)
	_, err := r.exec(ctx).ExecContext(ctx, query, at, id)
	return err
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", constants.TableUser)
	var n int
	err := r.exec(ctx).QueryRowContext(ctx, query).Scan(&n)
	return n, err
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	var role string
	var lastLogin sql.NullTime
	err := r.exec(ctx).QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&role, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = constants.UserRole(role)
	u.LastLoginAt = models.NullTimeToPtr(lastLogin)
	return &u, nil
}
