package models

import (
	"encoding/json"
	"time"

	"github.com/nexuscrm/taskdesk/pkg/constants"
)

// ActivityLog is the human-readable trail entry written for each domain event.
type ActivityLog struct {
	ID          string         `json:"id"`
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	SubjectType string         `json:"subject_type"`
	SubjectID   string         `json:"subject_id"`
	ActorID     *string        `json:"actor_id,omitempty"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Notification is a message addressed to a single user.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipient_id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Link        string     `json:"link,omitempty"`
	EventID     string     `json:"event_id,omitempty"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Webhook is an outbound HTTP subscription owned by a user.
type Webhook struct {
	ID                  string   `json:"id"`
	OwnerID             string   `json:"owner_id"`
	URL                 string   `json:"url"`
	EventTypes          []string `json:"event_types"`
	Secret              string   `json:"-"`
	IsActive            bool     `json:"is_active"`
	ConsecutiveFailures int      `json:"consecutive_failures"`
	Timestamps
}

// CreatedWebhook is the create response. It is the only read that returns the
// signing secret.
type CreatedWebhook struct {
	*Webhook
	Secret string `json:"secret"`
}

// Subscribes reports whether the webhook wants eventType.
func (w *Webhook) Subscribes(eventType string) bool {
	for _, t := range w.EventTypes {
		if t == constants.WebhookWildcard || t == eventType {
			return true
		}
	}
	return false
}

// WebhookLog records one delivery of one event to one webhook.
type WebhookLog struct {
	ID            string                     `json:"id"`
	WebhookID     string                     `json:"webhook_id"`
	EventID       string                     `json:"event_id"`
	EventType     string                     `json:"event_type"`
	Payload       json.RawMessage            `json:"payload"`
	Status        constants.WebhookLogStatus `json:"status"`
	Attempts      int                        `json:"attempts"`
	ResponseCode  *int                       `json:"response_code,omitempty"`
	ResponseBody  *string                    `json:"response_body,omitempty"`
	Error         *string                    `json:"error,omitempty"`
	NextAttemptAt time.Time                  `json:"next_attempt_at"`
	DeliveredAt   *time.Time                 `json:"delivered_at,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
}

// TaskAutomation is a rule run when its trigger event fires and its condition holds.
type TaskAutomation struct {
	ID           string                     `json:"id" yaml:"-"`
	Name         string                     `json:"name" yaml:"name"`
	TriggerEvent string                     `json:"trigger_event" yaml:"trigger_event"`
	Condition    string                     `json:"condition" yaml:"condition"`
	Action       constants.AutomationAction `json:"action" yaml:"action"`
	ActionConfig map[string]any             `json:"action_config" yaml:"action_config"`
	IsActive     bool                       `json:"is_active" yaml:"is_active"`
	Priority     int                        `json:"priority" yaml:"priority"`
	CreatedBy    *string                    `json:"created_by,omitempty" yaml:"-"`
	Timestamps   `yaml:"-"`
}

// OutboxEvent is a serialized domain event waiting to be published.
type OutboxEvent struct {
	ID          string     `json:"id"`
	EventType   string     `json:"event_type"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
