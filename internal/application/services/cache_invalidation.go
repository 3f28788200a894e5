package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/pkg/constants"
)

// CacheInvalidator drops cached views an event makes stale.
type CacheInvalidator struct {
	cache  ports.Cache
	logger *slog.Logger
}

func NewCacheInvalidator(cache ports.Cache, logger *slog.Logger) *CacheInvalidator {
	return &CacheInvalidator{cache: cache, logger: logger}
}

func (c *CacheInvalidator) Register(bus ports.EventPublisher) func() {
	return bus.SubscribeAll(c.HandleEvent)
}

// KeysFor lists the cache keys invalidated by ev.
func KeysFor(ev *events.Event) []string {
	var keys []string
	if ev.SubjectType != "" && ev.SubjectID != "" {
		keys = append(keys, constants.ActivityFeedKey(ev.SubjectType, ev.SubjectID))
	}
	t := ev.Type.String()
	if strings.HasPrefix(t, "task.") || strings.HasPrefix(t, "deal.") || strings.HasPrefix(t, "client.") {
		keys = append(keys, constants.CacheKeyDashboardStats)
	}
	return keys
}

func (c *CacheInvalidator) HandleEvent(ctx context.Context, ev *events.Event) error {
	keys := KeysFor(ev)
	if len(keys) == 0 {
		return nil
	}
	ctx = logger.WithComponent(ctx, "listener.cache")
	if err := c.cache.Delete(ctx, keys...); err != nil {
		// A stale entry expires on its own; do not fail the event.
		c.logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
	return nil
}
