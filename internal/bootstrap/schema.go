package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nexuscrm/taskdesk/pkg/constants"
)

// TableDefinition is one table the service owns.
type TableDefinition struct {
	TableName string
	DDL       string
}

// GetSystemTableDefinitions returns the tables in creation order.
func GetSystemTableDefinitions() []TableDefinition {
	return []TableDefinition{
		{constants.TableUser, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL DEFAULT 'member',
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			last_login_at DATETIME(6) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			UNIQUE KEY uk_users_email (email)`},
		{constants.TableSession, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			token_id VARCHAR(64) NOT NULL,
			expires_at DATETIME(6) NOT NULL,
			last_activity DATETIME(6) NOT NULL,
			is_revoked TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uk_sessions_token (token_id),
			KEY idx_sessions_expires (expires_at)`},
		{constants.TableClient, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NULL,
			phone VARCHAR(64) NULL,
			company VARCHAR(255) NULL,
			owner_id VARCHAR(36) NOT NULL,
			deleted_at DATETIME(6) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			KEY idx_clients_owner (owner_id)`},
		{constants.TableDeal, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			client_id VARCHAR(36) NULL,
			owner_id VARCHAR(36) NOT NULL,
			amount DECIMAL(15,2) NOT NULL DEFAULT 0,
			stage VARCHAR(32) NOT NULL,
			lost_reason TEXT NULL,
			closed_at DATETIME(6) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			KEY idx_deals_stage (stage)`},
		{constants.TableTask, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NULL,
			status VARCHAR(32) NOT NULL,
			priority VARCHAR(32) NOT NULL,
			assignee_id VARCHAR(36) NULL,
			creator_id VARCHAR(36) NOT NULL,
			client_id VARCHAR(36) NULL,
			deal_id VARCHAR(36) NULL,
			due_at DATETIME(6) NULL,
			completed_at DATETIME(6) NULL,
			overdue_flagged_at DATETIME(6) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			KEY idx_tasks_due (due_at, status),
			KEY idx_tasks_assignee (assignee_id)`},
		{constants.TableActivityLog, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			event_id VARCHAR(36) NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			subject_type VARCHAR(32) NOT NULL,
			subject_id VARCHAR(36) NOT NULL,
			actor_id VARCHAR(36) NULL,
			description TEXT NOT NULL,
			metadata JSON NULL,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uk_activity_event (event_id),
			KEY idx_activity_subject (subject_type, subject_id, created_at),
			KEY idx_activity_actor (actor_id, created_at),
			KEY idx_activity_created (created_at)`},
		{constants.TableNotification, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			recipient_id VARCHAR(36) NOT NULL,
			type VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			body TEXT NOT NULL,
			link VARCHAR(512) NOT NULL DEFAULT '',
			event_id VARCHAR(36) NOT NULL,
			is_read TINYINT(1) NOT NULL DEFAULT 0,
			read_at DATETIME(6) NULL,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uk_notifications_recipient_event (recipient_id, event_id),
			KEY idx_notifications_unread (recipient_id, is_read, created_at)`},
		{constants.TableWebhook, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			owner_id VARCHAR(36) NOT NULL,
			url VARCHAR(2048) NOT NULL,
			event_types JSON NOT NULL,
			secret VARCHAR(128) NOT NULL,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			consecutive_failures INT NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			KEY idx_webhooks_owner (owner_id),
			KEY idx_webhooks_active (is_active)`},
		{constants.TableWebhookLog, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			webhook_id VARCHAR(36) NOT NULL,
			event_id VARCHAR(36) NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			payload JSON NOT NULL,
			status VARCHAR(16) NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			response_code INT NULL,
			response_body TEXT NULL,
			error TEXT NULL,
			next_attempt_at DATETIME(6) NOT NULL,
			delivered_at DATETIME(6) NULL,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uk_webhook_logs_webhook_event (webhook_id, event_id),
			KEY idx_webhook_logs_due (status, next_attempt_at),
			KEY idx_webhook_logs_webhook (webhook_id, created_at)`},
		{constants.TableTaskAutomation, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			trigger_event VARCHAR(64) NOT NULL,
			` + "`condition`" + ` TEXT NOT NULL,
			action VARCHAR(32) NOT NULL,
			action_config JSON NOT NULL,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			priority INT NOT NULL DEFAULT 100,
			created_by VARCHAR(36) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			KEY idx_automations_trigger (trigger_event, is_active, priority)`},
		{constants.TableOutboxEvent, `
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			payload JSON NOT NULL,
			status VARCHAR(16) NOT NULL,
			retry_count INT NOT NULL DEFAULT 0,
			last_error TEXT NULL,
			created_at DATETIME(6) NOT NULL,
			processed_at DATETIME(6) NULL,
			KEY idx_outbox_status (status, created_at)`},
	}
}

// Statement renders the full CREATE TABLE statement.
func (d TableDefinition) Statement() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", d.TableName, d.DDL)
}

// InitializeSchema creates every table that does not exist yet. It is safe to
// run on every start.
func InitializeSchema(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	defs := GetSystemTableDefinitions()
	logger.Info("initializing schema", "tables", len(defs))

	validator := NewDDLValidator()
	for _, def := range defs {
		if err := validator.ValidateCreateTable(def.TableName, def.Statement()); err != nil {
			return err
		}
	}

	for _, def := range defs {
		if _, err := db.ExecContext(ctx, def.Statement()); err != nil {
			return fmt.Errorf("failed to create table %s: %w", def.TableName, err)
		}
		logger.Debug("table ready", "table", def.TableName)
	}
	return nil
}
