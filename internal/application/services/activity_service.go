package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/persistence"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

// activityTemplates maps each event type to its description.
var activityTemplates = map[events.EventType]string{
	events.TaskCreated:      `{actor} created task "{title}"`,
	events.TaskUpdated:      `{actor} updated task "{title}" ({fields})`,
	events.TaskAssigned:     `{actor} assigned task "{title}" to {assignee}`,
	events.TaskCompleted:    `{actor} completed task "{title}"`,
	events.TaskDeleted:      `{actor} deleted task "{title}"`,
	events.TaskOverdue:      `Task "{title}" is overdue`,
	events.DealCreated:      `{actor} created deal "{name}"`,
	events.DealStageChanged: `{actor} moved deal "{name}" from {previous_stage} to {stage}`,
	events.DealWon:          `{actor} won deal "{name}"`,
	events.DealLost:         `{actor} lost deal "{name}": {reason}`,
	events.ClientCreated:    `{actor} created client "{name}"`,
	events.ClientUpdated:    `{actor} updated client "{name}" ({fields})`,
	events.ClientDeleted:    `{actor} deleted client "{name}"`,
	events.UserRegistered:   `{actor} registered user "{name}"`,
	events.WebhookFailed:    `Webhook delivery of {event} to {url} failed after {attempts} attempts`,
}

// metadataFields are copied from the subject object into activity metadata.
var metadataFields = []string{"title", "name", "status", "priority", "stage", "amount", "assignee_id", "owner_id", "url"}

// ActivityService writes the activity trail and serves feeds.
type ActivityService struct {
	repo   ActivityStore
	cache  ports.Cache
	logger *slog.Logger
}

func NewActivityService(repo ActivityStore, cache ports.Cache, logger *slog.Logger) *ActivityService {
	return &ActivityService{repo: repo, cache: cache, logger: logger}
}

// Register subscribes the activity writer to every event.
func (s *ActivityService) Register(bus ports.EventPublisher) func() {
	return bus.SubscribeAll(s.HandleEvent)
}

// HandleEvent records one activity row per event. Replays are ignored.
func (s *ActivityService) HandleEvent(ctx context.Context, ev *events.Event) error {
	ctx = logger.WithComponent(ctx, "listener.activity")
	entry := Translate(ev)
	if entry == nil {
		return nil
	}

	inserted, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return fmt.Errorf("activity for %s: %w", ev.Type, err)
	}
	if !inserted {
		s.logger.DebugContext(ctx, "activity already recorded")
		return nil
	}

	if err := s.cache.Delete(ctx, constants.ActivityFeedKey(ev.SubjectType, ev.SubjectID)); err != nil {
		s.logger.WarnContext(ctx, "activity feed cache invalidation failed", "error", err)
	}
	return nil
}

// Translate turns an event into its activity row, or nil for unknown types.
func Translate(ev *events.Event) *models.ActivityLog {
	tmpl, ok := activityTemplates[ev.Type]
	if !ok {
		return nil
	}

	meta := map[string]any{}
	subject := ev.Object(ev.SubjectType)
	for _, f := range metadataFields {
		if v, ok := subject[f]; ok && v != nil {
			meta[f] = v
		}
	}
	for _, k := range []string{events.KeyChanges, events.KeyPreviousStage, events.KeyPreviousAssignee, events.KeyReason, events.KeyDelivery} {
		if v, ok := ev.Payload[k]; ok && v != nil {
			meta[k] = v
		}
	}
	if ev.AutomationDepth > 0 {
		meta["automation_depth"] = ev.AutomationDepth
	}

	var actorID *string
	if id := ev.ActorID(); id != "" {
		actorID = &id
	}

	return &models.ActivityLog{
		ID:          utils.GenerateID(),
		EventID:     ev.ID,
		EventType:   ev.Type.String(),
		SubjectType: ev.SubjectType,
		SubjectID:   ev.SubjectID,
		ActorID:     actorID,
		Description: render(tmpl, templateVars(ev)),
		Metadata:    meta,
		CreatedAt:   ev.OccurredAt,
	}
}

// SubjectFeed lists activity for one subject. The first default-sized page is cached.
func (s *ActivityService) SubjectFeed(ctx context.Context, subjectType, subjectID string, before *time.Time, limit int) ([]models.ActivityLog, error) {
	limit = utils.ClampLimit(limit, constants.DefaultPageLimit, constants.MaxPageLimit)
	q := persistence.ActivityQuery{SubjectType: subjectType, SubjectID: subjectID, Before: before, Limit: limit}

	if before != nil || limit != constants.DefaultPageLimit {
		return s.repo.List(ctx, q)
	}

	key := constants.ActivityFeedKey(subjectType, subjectID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached []models.ActivityLog
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "activity feed cache read failed", "error", err)
	}

	feed, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(feed); err == nil {
		if err := s.cache.Set(ctx, key, raw, constants.ActivityFeedTTL); err != nil {
			s.logger.WarnContext(ctx, "activity feed cache write failed", "error", err)
		}
	}
	return feed, nil
}

// ActorFeed lists what one user did.
func (s *ActivityService) ActorFeed(ctx context.Context, actorID string, before *time.Time, limit int) ([]models.ActivityLog, error) {
	return s.repo.List(ctx, persistence.ActivityQuery{
		ActorID: actorID,
		Before:  before,
		Limit:   utils.ClampLimit(limit, constants.DefaultPageLimit, constants.MaxPageLimit),
	})
}

// RecentFeed lists the latest activity across the system.
func (s *ActivityService) RecentFeed(ctx context.Context, before *time.Time, limit int) ([]models.ActivityLog, error) {
	return s.repo.List(ctx, persistence.ActivityQuery{
		Before: before,
		Limit:  utils.ClampLimit(limit, constants.DefaultPageLimit, constants.MaxPageLimit),
	})
}
