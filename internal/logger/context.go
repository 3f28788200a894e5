package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every log line written with a context that carries them.
type LogFields struct {
	EventID   string
	EventType string
	UserID    string
	RequestID string
	Component string // e.g. "listener.activity", "worker.webhook"
}

// WithLogFields merges fields into ctx. Non-empty values win over existing ones.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	if fields.EventID != "" {
		merged.EventID = fields.EventID
	}
	if fields.EventType != "" {
		merged.EventType = fields.EventType
	}
	if fields.UserID != "" {
		merged.UserID = fields.UserID
	}
	if fields.RequestID != "" {
		merged.RequestID = fields.RequestID
	}
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// WithComponent is shorthand for tagging a context with a component name.
func WithComponent(ctx context.Context, component string) context.Context {
	return WithLogFields(ctx, LogFields{Component: component})
}
