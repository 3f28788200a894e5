package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
	"github.com/nexuscrm/taskdesk/pkg/validator"
)

const webhookTestEvent = "webhook.test"

// WebhookInput is the body of a create request.
type WebhookInput struct {
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types"`
	IsActive   *bool    `json:"is_active,omitempty"`
}

// WebhookPatch is the body of an update request. Nil fields are left alone.
type WebhookPatch struct {
	URL        *string  `json:"url,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
	IsActive   *bool    `json:"is_active,omitempty"`
}

// WebhookService manages webhook subscriptions and queues deliveries.
type WebhookService struct {
	hooks    WebhookStore
	logs     WebhookLogStore
	delivery *WebhookDeliveryWorker
	logger   *slog.Logger
}

func NewWebhookService(hooks WebhookStore, logs WebhookLogStore, delivery *WebhookDeliveryWorker, logger *slog.Logger) *WebhookService {
	return &WebhookService{hooks: hooks, logs: logs, delivery: delivery, logger: logger}
}

// Register subscribes the fan-out listener to every event.
func (s *WebhookService) Register(bus ports.EventPublisher) func() {
	return bus.SubscribeAll(s.HandleEvent)
}

// HandleEvent queues one pending delivery per active webhook subscribed to the
// event. webhook.failed is never delivered to webhooks.
func (s *WebhookService) HandleEvent(ctx context.Context, ev *events.Event) error {
	if ev.Type == events.WebhookFailed {
		return nil
	}
	ctx = logger.WithComponent(ctx, "listener.webhook")

	hooks, err := s.hooks.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active webhooks: %w", err)
	}

	var body []byte
	for i := range hooks {
		h := &hooks[i]
		if !h.Subscribes(ev.Type.String()) {
			continue
		}
		if body == nil {
			if body, err = ev.Marshal(); err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
		}
		queued, err := s.logs.InsertPending(ctx, &models.WebhookLog{
			ID:            utils.GenerateID(),
			WebhookID:     h.ID,
			EventID:       ev.ID,
			EventType:     ev.Type.String(),
			Payload:       body,
			NextAttemptAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("queue delivery to webhook %s: %w", h.ID, err)
		}
		if queued {
			s.logger.DebugContext(ctx, "webhook delivery queued", "webhook_id", h.ID)
		}
	}
	return nil
}

func (s *WebhookService) Create(ctx context.Context, user *auth.UserSession, in WebhookInput) (*models.Webhook, error) {
	if err := validateWebhookURL(in.URL); err != nil {
		return nil, err
	}
	types, err := validateEventTypes(in.EventTypes)
	if err != nil {
		return nil, err
	}
	secret, err := generateSecret()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate webhook secret", err)
	}

	w := &models.Webhook{
		ID:         utils.GenerateID(),
		OwnerID:    user.ID,
		URL:        strings.TrimSpace(in.URL),
		EventTypes: types,
		Secret:     secret,
		IsActive:   in.IsActive == nil || *in.IsActive,
	}
	if err := s.hooks.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WebhookService) List(ctx context.Context, user *auth.UserSession) ([]models.Webhook, error) {
	return s.hooks.ListByOwner(ctx, user.ID)
}

// Get returns a webhook the user owns. Admins may read any webhook.
func (s *WebhookService) Get(ctx context.Context, user *auth.UserSession, id string) (*models.Webhook, error) {
	w, err := s.hooks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil || (w.OwnerID != user.ID && !user.IsAdmin()) {
		return nil, apperrors.NewNotFoundError("webhook", id)
	}
	return w, nil
}

func (s *WebhookService) Update(ctx context.Context, user *auth.UserSession, id string, patch WebhookPatch) (*models.Webhook, error) {
	w, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if patch.URL != nil {
		if err := validateWebhookURL(*patch.URL); err != nil {
			return nil, err
		}
		w.URL = strings.TrimSpace(*patch.URL)
	}
	if patch.EventTypes != nil {
		types, err := validateEventTypes(patch.EventTypes)
		if err != nil {
			return nil, err
		}
		w.EventTypes = types
	}
	if patch.IsActive != nil {
		if *patch.IsActive && !w.IsActive {
			// Reactivation starts a fresh failure streak.
			w.ConsecutiveFailures = 0
		}
		w.IsActive = *patch.IsActive
	}

	if err := s.hooks.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WebhookService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	if _, err := s.Get(ctx, user, id); err != nil {
		return err
	}
	return s.hooks.Delete(ctx, id)
}

// Logs returns the delivery history of a webhook, newest first.
func (s *WebhookService) Logs(ctx context.Context, user *auth.UserSession, id string, limit int) ([]models.WebhookLog, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	return s.logs.ListByWebhook(ctx, id, utils.ClampLimit(limit, constants.DefaultPageLimit, constants.MaxPageLimit))
}

// SendTest posts a signed ping to the webhook right away and reports the
// outcome. Nothing is logged or retried.
func (s *WebhookService) SendTest(ctx context.Context, user *auth.UserSession, id string) (*TestDelivery, error) {
	w, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	ev := &events.Event{
		ID:          utils.GenerateID(),
		Type:        webhookTestEvent,
		OccurredAt:  time.Now().UTC(),
		Actor:       user,
		SubjectType: constants.SubjectWebhook,
		SubjectID:   w.ID,
		Payload:     map[string]any{"message": "This is a test delivery"},
	}
	body, err := ev.Marshal()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode test event", err)
	}

	start := time.Now()
	attempt := s.delivery.post(ctx, w, ev.ID, webhookTestEvent, body)
	return &TestDelivery{
		Success:      attempt.success(),
		StatusCode:   attempt.result.ResponseCode,
		ResponseBody: attempt.result.ResponseBody,
		Error:        attempt.result.Error,
		DurationMS:   time.Since(start).Milliseconds(),
	}, nil
}

// TestDelivery reports a SendTest attempt.
type TestDelivery struct {
	Success      bool    `json:"success"`
	StatusCode   *int    `json:"status_code,omitempty"`
	ResponseBody *string `json:"response_body,omitempty"`
	Error        *string `json:"error,omitempty"`
	DurationMS   int64   `json:"duration_ms"`
}

func validateWebhookURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.NewValidationError("url", "is required")
	}
	if err := validator.Validate("url", raw); err != nil {
		return apperrors.NewValidationError("url", err.Error())
	}
	return nil
}

func validateEventTypes(types []string) ([]string, error) {
	if len(types) == 0 {
		return nil, apperrors.NewValidationError("event_types", "at least one event type is required")
	}
	seen := make(map[string]bool, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t != constants.WebhookWildcard && !events.IsKnown(t) {
			return nil, apperrors.NewValidationError("event_types", fmt.Sprintf("unknown event type %q", t))
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
