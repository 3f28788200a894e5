package constants

import "time"

const (
	SystemUserName  = "System"
	DefaultUserName = "Unknown"

	DefaultPageLimit = 25
	MaxPageLimit     = 100

	// Titles and names are stored in VARCHAR(255) columns.
	MaxLabelLength = 255

	// Automation-produced events deeper than this are not evaluated again.
	MaxAutomationDepth = 3

	WebhookResponseBodyLimit = 1024
	WebhookBackoffBase       = 30 * time.Second
	WebhookBackoffCap        = time.Hour
	WebhookWildcard          = "*"

	UnreadCountTTL    = 5 * time.Minute
	DashboardStatsTTL = time.Minute
	ActivityFeedTTL   = 2 * time.Minute
)
