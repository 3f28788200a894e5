package events

// EventType defines the type of event in the system
type EventType string

const (
	// Task events
	TaskCreated   EventType = "task.created"
	TaskUpdated   EventType = "task.updated"
	TaskAssigned  EventType = "task.assigned"
	TaskCompleted EventType = "task.completed"
	TaskDeleted   EventType = "task.deleted"
	TaskOverdue   EventType = "task.overdue"

	// Deal events
	DealCreated      EventType = "deal.created"
	DealStageChanged EventType = "deal.stage_changed"
	DealWon          EventType = "deal.won"
	DealLost         EventType = "deal.lost"

	// Client events
	ClientCreated EventType = "client.created"
	ClientUpdated EventType = "client.updated"
	ClientDeleted EventType = "client.deleted"

	// User events
	UserRegistered EventType = "user.registered"

	// Webhook delivery gave up on a log entry
	WebhookFailed EventType = "webhook.failed"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// AllTypes lists every event type the system emits.
func AllTypes() []EventType {
	return []EventType{
		TaskCreated, TaskUpdated, TaskAssigned, TaskCompleted, TaskDeleted, TaskOverdue,
		DealCreated, DealStageChanged, DealWon, DealLost,
		ClientCreated, ClientUpdated, ClientDeleted,
		UserRegistered,
		WebhookFailed,
	}
}

// IsKnown reports whether s names an event type.
func IsKnown(s string) bool {
	for _, t := range AllTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Payload keys
const (
	KeyTask             = "task"
	KeyDeal             = "deal"
	KeyClient           = "client"
	KeyUser             = "user"
	KeyWebhook          = "webhook"
	KeyDelivery         = "delivery"
	KeyChanges          = "changes"
	KeyPreviousAssignee = "previous_assignee_id"
	KeyPreviousStage    = "previous_stage"
	KeyReason           = "reason"
)
