package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// NotificationKind identifies which message a notification produces.
type NotificationKind string

const (
	NotificationComplaintCreated NotificationKind = "complaint_created"
	NotificationStatusUpdated    NotificationKind = "status_updated"
)

// NotificationState tracks delivery of an outbox row.
type NotificationState string

const (
	NotificationPending NotificationState = "pending"
	// NotificationSending rows are leased by a worker until LockedUntil.
	NotificationSending NotificationState = "sending"
	NotificationSent    NotificationState = "sent"
	NotificationFailed  NotificationState = "failed"
)

// Notification is an outbox row written in the same transaction as the
// complaint change it describes. A background worker delivers it later.
type Notification struct {
	gorm.Model // ID, CreatedAt, UpdatedAt, DeletedAt

	Kind           NotificationKind `gorm:"type:text;not null"`
	ComplaintID    string           `gorm:"type:uuid;not null;index"`
	StudentID      string           `gorm:"type:uuid;not null"`
	ComplaintTitle string           `gorm:"type:text;not null"`
	Status         Status           `gorm:"type:text"`
	AdminRemarks   *string          `gorm:"type:text"`
	// AdminEmails overrides the configured admin list for this message.
	AdminEmails pq.StringArray    `gorm:"type:text[]"`
	State       NotificationState `gorm:"type:text;not null;index"`
	LockedUntil *time.Time
	// Delivered names the channels that already accepted this notification.
	Delivered   pq.StringArray `gorm:"type:text[]"`
	Attempts    int            `gorm:"not null"`
	LastError   string         `gorm:"type:text"`
	ProcessedAt *time.Time
}

// HasDelivered reports whether channel already accepted the notification.
func (n *Notification) HasDelivered(channel string) bool {
	for _, c := range n.Delivered {
		if c == channel {
			return true
		}
	}
	return false
}

// BeforeCreate marks new rows as pending.
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.State == "" {
		n.State = NotificationPending
	}
	return nil
}
