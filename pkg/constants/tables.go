package constants

// Table names. Every table is created by the schema bootstrap.
const (
	TableUser           = "users"
	TableSession        = "sessions"
	TableClient         = "clients"
	TableDeal           = "deals"
	TableTask           = "tasks"
	TableActivityLog    = "activity_logs"
	TableNotification   = "notifications"
	TableWebhook        = "webhooks"
	TableWebhookLog     = "webhook_logs"
	TableTaskAutomation = "task_automations"
	TableOutboxEvent    = "outbox_events"
)

// AllTables lists the tables in creation order (referenced tables first).
func AllTables() []string {
	return []string{
		TableUser,
		TableSession,
		TableClient,
		TableDeal,
		TableTask,
		TableActivityLog,
		TableNotification,
		TableWebhook,
		TableWebhookLog,
		TableTaskAutomation,
		TableOutboxEvent,
	}
}
