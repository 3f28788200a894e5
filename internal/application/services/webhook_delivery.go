package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nexuscrm/taskdesk/internal/config"
	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/persistence"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
)

// Delivery headers.
const (
	HeaderWebhookEvent     = "X-Webhook-Event"
	HeaderWebhookDelivery  = "X-Webhook-Delivery"
	HeaderWebhookSignature = "X-Webhook-Signature"
)

// WebhookDeliveryWorker drains pending webhook logs.
type WebhookDeliveryWorker struct {
	logs       WebhookLogStore
	hooks      WebhookStore
	dispatcher ports.EventDispatcher
	client     *http.Client
	cfg        config.WebhookConfig
	now        func() time.Time
	logger     *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWebhookDeliveryWorker(logs WebhookLogStore, hooks WebhookStore, dispatcher ports.EventDispatcher, cfg config.WebhookConfig, logger *slog.Logger) *WebhookDeliveryWorker {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = constants.WebhookBackoffBase
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &WebhookDeliveryWorker{
		logs:       logs,
		hooks:      hooks,
		dispatcher: dispatcher,
		client:     &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Backoff returns the delay before the next attempt after the given number of
// failed attempts: base * 2^(attempts-1), capped at one hour.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= constants.WebhookBackoffCap {
			return constants.WebhookBackoffCap
		}
	}
	if d > constants.WebhookBackoffCap {
		return constants.WebhookBackoffCap
	}
	return d
}

// Sign computes the X-Webhook-Signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (w *WebhookDeliveryWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()

		ctx := logger.WithComponent(context.Background(), "worker.webhook")
		w.logger.InfoContext(ctx, "webhook delivery worker started", "interval", w.cfg.PollInterval)

		for {
			select {
			case <-w.stopCh:
				w.logger.InfoContext(ctx, "webhook delivery worker stopping")
				return
			case <-ticker.C:
				if _, err := w.ProcessDue(ctx); err != nil {
					w.logger.ErrorContext(ctx, "webhook delivery poll failed", "error", err)
				}
			}
		}
	}()
}

func (w *WebhookDeliveryWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

// ProcessDue attempts every delivery that is due now and returns how many
// were attempted.
func (w *WebhookDeliveryWorker) ProcessDue(ctx context.Context) (int, error) {
	now := w.now()

	// Anything left in sending for longer than two timeouts lost its worker.
	if released, err := w.logs.ReleaseStale(ctx, now.Add(-2*w.cfg.Timeout)); err != nil {
		w.logger.WarnContext(ctx, "release stale deliveries failed", "error", err)
	} else if released > 0 {
		w.logger.WarnContext(ctx, "released stale deliveries", "count", released)
	}

	due, err := w.logs.ListDue(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i := range due {
		ok, err := w.logs.Claim(ctx, due[i].ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "claim delivery failed", "log_id", due[i].ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		attempted++
		if err := w.deliver(ctx, &due[i]); err != nil {
			w.logger.ErrorContext(ctx, "delivery bookkeeping failed", "log_id", due[i].ID, "error", err)
		}
	}
	return attempted, nil
}

type attempt struct {
	result persistence.DeliveryResult
}

func (a attempt) success() bool {
	return a.result.Error == nil && a.result.ResponseCode != nil &&
		*a.result.ResponseCode >= 200 && *a.result.ResponseCode < 300
}

func (w *WebhookDeliveryWorker) deliver(ctx context.Context, entry *models.WebhookLog) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{EventID: entry.EventID, EventType: entry.EventType})

	hook, err := w.hooks.Get(ctx, entry.WebhookID)
	if err != nil {
		return err
	}
	attempts := entry.Attempts + 1
	if hook == nil || !hook.IsActive {
		msg := "webhook deleted or inactive"
		return w.logs.MarkFailed(ctx, entry.ID, persistence.DeliveryResult{Attempts: entry.Attempts, Error: &msg})
	}

	a := w.post(ctx, hook, entry.ID, entry.EventType, entry.Payload)
	a.result.Attempts = attempts

	if a.success() {
		if err := w.logs.MarkDelivered(ctx, entry.ID, a.result); err != nil {
			return err
		}
		return w.hooks.ResetFailures(ctx, hook.ID)
	}

	if attempts < w.cfg.MaxAttempts {
		next := w.now().Add(Backoff(w.cfg.BackoffBase, attempts))
		w.logger.WarnContext(ctx, "webhook delivery failed, will retry",
			"log_id", entry.ID, "webhook_id", hook.ID, "attempt", attempts, "next_attempt_at", next)
		return w.logs.ScheduleRetry(ctx, entry.ID, a.result, next)
	}

	if err := w.logs.MarkFailed(ctx, entry.ID, a.result); err != nil {
		return err
	}
	failures, deactivated, err := w.hooks.RecordFailure(ctx, hook.ID, w.cfg.FailureThreshold)
	if err != nil {
		return err
	}
	if deactivated {
		w.logger.WarnContext(ctx, "webhook deactivated", "webhook_id", hook.ID, "consecutive_failures", failures)
	}
	return w.publishFailed(ctx, hook, entry, a.result, failures, deactivated)
}

func (w *WebhookDeliveryWorker) publishFailed(ctx context.Context, hook *models.Webhook, entry *models.WebhookLog, res persistence.DeliveryResult, failures int, deactivated bool) error {
	if w.dispatcher == nil {
		return nil
	}
	delivery := map[string]any{
		"id":          entry.ID,
		"event_id":    entry.EventID,
		"event_type":  entry.EventType,
		"attempts":    res.Attempts,
		"error":       res.Error,
		"status_code": res.ResponseCode,
	}
	ev, err := events.New(events.WebhookFailed, nil, constants.SubjectWebhook, hook.ID, map[string]any{
		events.KeyWebhook: map[string]any{
			"id":                   hook.ID,
			"owner_id":             hook.OwnerID,
			"url":                  hook.URL,
			"consecutive_failures": failures,
			"deactivated":          deactivated,
		},
		events.KeyDelivery: delivery,
	})
	if err != nil {
		return err
	}
	return w.dispatcher.Dispatch(ctx, ev)
}

// post sends one signed request and captures the outcome.
func (w *WebhookDeliveryWorker) post(ctx context.Context, hook *models.Webhook, deliveryID, eventType string, body []byte) attempt {
	sc := logger.StartSpan(ctx, "webhook.deliver")
	defer sc.End()
	sc.Span().SetAttributes(
		attribute.String("webhook.id", hook.ID),
		attribute.String("event.type", eventType),
	)

	var a attempt
	req, err := http.NewRequestWithContext(sc.Context(), http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		a.result.Error = utils.Ptr(fmt.Sprintf("build request: %v", err))
		return a
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TaskDesk-Webhooks/1.0")
	req.Header.Set(HeaderWebhookEvent, eventType)
	req.Header.Set(HeaderWebhookDelivery, deliveryID)
	req.Header.Set(HeaderWebhookSignature, Sign(hook.Secret, body))

	resp, err := w.client.Do(req)
	if err != nil {
		sc.RecordError(err)
		a.result.Error = utils.Ptr(err.Error())
		return a
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, constants.WebhookResponseBodyLimit+utf8Slack))
	respBody := utils.Truncate(string(raw), constants.WebhookResponseBodyLimit)
	a.result.ResponseCode = utils.Ptr(resp.StatusCode)
	a.result.ResponseBody = &respBody
	sc.Span().SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.result.Error = utils.Ptr(fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	return a
}

// utf8Slack lets Truncate back off to a rune boundary.
const utf8Slack = 4
