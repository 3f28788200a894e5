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

const dealColumns = "id, name, client_id, owner_id, amount, stage, lost_reason, closed_at, created_at, updated_at"

type DealRepository struct {
	base
}

func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{base{db: db}}
}

func (r *DealRepository) Create(ctx context.Context, d *models.Deal) error {
	d.Touch(time.Now())
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableDeal, dealColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query,
		d.ID, d.Name, models.NewNullString(d.ClientID), d.OwnerID, d.Amount, string(d.Stage),
		models.NewNullString(d.LostReason), models.NewNullTime(d.ClosedAt), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}
	return nil
}

// Get returns the deal, or nil. Inside a transaction the row is locked.
func (r *DealRepository) Get(ctx context.Context, id string) (*models.Deal, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", dealColumns, constants.TableDeal)
	if TxFromContext(ctx) != nil {
		query += " FOR UPDATE"
	}

	var d models.Deal
	var client, reason sql.NullString
	var stage string
	var closed sql.NullTime
	err := r.exec(ctx).QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Name, &client, &d.OwnerID, &d.Amount,
		&stage, &reason, &closed, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.ClientID = models.NullStringToPtr(client)
	d.Stage = constants.DealStage(stage)
	d.LostReason = models.NullStringToPtr(reason)
	d.ClosedAt = models.NullTimeToPtr(closed)
	return &d, nil
}

func (r *DealRepository) Update(ctx context.Context, d *models.Deal) error {
	d.Touch(time.Now())
	query := fmt.Sprintf(`
		UPDATE %s SET name = ?, client_id = ?, owner_id = ?, amount = ?, stage = ?, lost_reason = ?, closed_at = ?, updated_at = ?
		WHERE id = ?`, constants.TableDeal)
	_, err := r.exec(ctx).ExecContext(ctx, query,
		d.Name, models.NewNullString(d.ClientID), d.OwnerID, d.Amount, string(d.Stage),
		models.NewNullString(d.LostReason), models.NewNullTime(d.ClosedAt), d.UpdatedAt, d.ID)
	return err
}
