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

const clientColumns = "id, name, email, phone, company, owner_id, deleted_at, created_at, updated_at"

type ClientRepository struct {
	base
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{base{db: db}}
}

func (r *ClientRepository) Create(ctx context.Context, c *models.Client) error {
	c.Touch(time.Now())
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableClient, clientColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query,
		c.ID, c.Name, models.NewNullString(c.Email), models.NewNullString(c.Phone), models.NewNullString(c.Company),
		c.OwnerID, models.NewNullTime(c.DeletedAt), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// Get returns a live (not soft-deleted) client, or nil.
func (r *ClientRepository) Get(ctx context.Context, id string) (*models.Client, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND deleted_at IS NULL", clientColumns, constants.TableClient)
	if TxFromContext(ctx) != nil {
		query += " FOR UPDATE"
	}

	var c models.Client
	var email, phone, company sql.NullString
	var deleted sql.NullTime
	err := r.exec(ctx).QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &email, &phone, &company,
		&c.OwnerID, &deleted, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Email = models.NullStringToPtr(email)
	c.Phone = models.NullStringToPtr(phone)
	c.Company = models.NullStringToPtr(company)
	c.DeletedAt = models.NullTimeToPtr(deleted)
	return &c, nil
}

func (r *ClientRepository) Update(ctx context.Context, c *models.Client) error {
	c.Touch(time.Now())
	query := fmt.Sprintf(`
		UPDATE %s SET name = ?, email = ?, phone = ?, company = ?, owner_id = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?`, constants.TableClient)
	_, err := r.exec(ctx).ExecContext(ctx, query,
		c.Name, models.NewNullString(c.Email), models.NewNullString(c.Phone), models.NewNullString(c.Company),
		c.OwnerID, models.NewNullTime(c.DeletedAt), c.UpdatedAt, c.ID)
	return err
}
