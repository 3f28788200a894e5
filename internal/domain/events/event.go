package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

// Event is the envelope every domain event travels in, in process, through the
// outbox, to webhooks and to the stream sink.
type Event struct {
	ID              string            `json:"id"`
	Type            EventType         `json:"type"`
	OccurredAt      time.Time         `json:"occurred_at"`
	Actor           *auth.UserSession `json:"actor"`
	SubjectType     string            `json:"subject_type"`
	SubjectID       string            `json:"subject_id"`
	Payload         map[string]any    `json:"payload"`
	AutomationDepth int               `json:"automation_depth,omitempty"`
}

// New builds an event. The payload is normalized through JSON so that handlers
// see the same shapes whether the event was published in process or replayed
// from the outbox.
func New(eventType EventType, actor *auth.UserSession, subjectType, subjectID string, payload map[string]any) (*Event, error) {
	normalized, err := normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("normalize %s payload: %w", eventType, err)
	}
	return &Event{
		ID:          utils.GenerateID(),
		Type:        eventType,
		OccurredAt:  time.Now().UTC(),
		Actor:       actor,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Payload:     normalized,
	}, nil
}

func normalize(payload map[string]any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode parses an envelope produced by Marshal.
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	return &e, nil
}

// Marshal encodes the envelope.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ActorID returns the acting user's id, or "" for system events.
func (e *Event) ActorID() string {
	if e.Actor == nil {
		return ""
	}
	return e.Actor.ID
}

// ActorName returns the acting user's name, or "System".
func (e *Event) ActorName() string {
	if e.Actor == nil || e.Actor.Name == "" {
		return "System"
	}
	return e.Actor.Name
}

// Object returns a nested payload object such as payload["task"].
func (e *Event) Object(key string) map[string]any {
	m, _ := e.Payload[key].(map[string]any)
	return m
}

// Str walks the payload along path and renders the leaf as a string.
// Str("task", "title") reads payload.task.title.
func (e *Event) Str(path ...string) string {
	return utils.ToString(e.Lookup(path...))
}

// Lookup walks the payload along path and returns the leaf, or nil.
func (e *Event) Lookup(path ...string) any {
	var cur any = e.Payload
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}
