package config

import "time"

const (
	// Notifications
	MaxNotificationAttempts  = 5
	NotificationBatchSize    = 20
	NotificationPollInterval = 5 * time.Second
	NotificationSendTimeout  = 15 * time.Second
	NotificationLease        = 10 * time.Minute

	// Sessions
	RoleCacheTTL       = 5 * time.Minute
	DefaultSessionTTL  = 72 * time.Hour
	DefaultTokenIssuer = "complaintdesk-service"

	// Change feed
	ChangeFeedBuffer = 64

	// Attachments
	MaxAttachmentSize = 10 << 20
)

// DefaultAdminEmails receive "new complaint" alerts when ADMIN_EMAILS is not set.
var DefaultAdminEmails = []string{"talk@brototype.com", "admin@brototype.com"}
