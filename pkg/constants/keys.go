package constants

// Gin / request context keys
const (
	ContextKeyUser  = "user"
	ContextKeyToken = "token"
)

// Cache keys
const (
	CacheKeyUnreadPrefix   = "notif:unread:"
	CacheKeyDashboardStats = "stats:dashboard"
	CacheKeyActivityPrefix = "activity:"
	CacheKeyRatePrefix     = "ratelimit:"
)

// UnreadCountKey is the cache key for a user's unread notification count.
func UnreadCountKey(userID string) string {
	return CacheKeyUnreadPrefix + userID
}

// ActivityFeedKey caches the first page of a subject's activity feed.
func ActivityFeedKey(subjectType, subjectID string) string {
	return CacheKeyActivityPrefix + subjectType + ":" + subjectID
}
