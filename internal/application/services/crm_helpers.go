package services

import (
	"context"
	"strings"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/validator"
)

type automationDepthKey struct{}

// withAutomationDepth marks ctx as running inside an automation triggered by
// an event at depth-1. Events raised under this ctx carry depth.
func withAutomationDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, automationDepthKey{}, depth)
}

func automationDepth(ctx context.Context) int {
	d, _ := ctx.Value(automationDepthKey{}).(int)
	return d
}

// newEvent builds an event and stamps the automation depth carried by ctx.
func newEvent(ctx context.Context, t events.EventType, actor *auth.UserSession, subjectType, subjectID string, payload map[string]any) (*events.Event, error) {
	ev, err := events.New(t, actor, subjectType, subjectID, payload)
	if err != nil {
		return nil, err
	}
	ev.AutomationDepth = automationDepth(ctx)
	return ev, nil
}

// mutate runs fn in a transaction, hands the events it produced to the
// dispatcher inside that transaction, and again once it has committed.
func mutate(ctx context.Context, tx TxRunner, d ports.EventDispatcher, fn func(ctx context.Context) ([]*events.Event, error)) error {
	var evs []*events.Event
	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if evs, err = fn(txCtx); err != nil {
			return err
		}
		return d.InTx(txCtx, evs...)
	})
	if err != nil {
		return err
	}
	d.Committed(ctx, evs...)
	return nil
}

// checkLabel trims a required title or name and caps it at the column width.
func checkLabel(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperrors.NewValidationError(field, "is required")
	}
	if err := validator.ValidateWith("length", value, map[string]any{"max": constants.MaxLabelLength}); err != nil {
		return "", apperrors.NewValidationError(field, err.Error())
	}
	return value, nil
}
