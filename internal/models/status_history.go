package models

import (
	"errors"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// ErrHistoryImmutable is returned when something tries to modify a written history entry.
var ErrHistoryImmutable = errors.New("status history entries are append-only")

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// newHistoryID returns a lexicographically sortable identifier, so entries
// written in the same instant still list in insertion order.
func newHistoryID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// StatusHistoryEntry records one status transition of a complaint.
type StatusHistoryEntry struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	ComplaintID string    `gorm:"type:uuid;not null;index:idx_history_complaint" json:"complaint_id"`
	OldStatus   Status    `gorm:"type:text;not null" json:"old_status"`
	NewStatus   Status    `gorm:"type:text;not null" json:"new_status"`
	Remarks     *string   `gorm:"type:text" json:"remarks,omitempty"`
	UpdatedBy   string    `gorm:"type:uuid;not null" json:"updated_by"`
	UpdatedAt   time.Time `gorm:"not null;index:idx_history_complaint" json:"updated_at"`
}

// TableName keeps the table name used by the rest of the platform.
func (StatusHistoryEntry) TableName() string {
	return "status_history"
}

// BeforeCreate stamps the entry and validates both statuses.
func (e *StatusHistoryEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = newHistoryID(e.UpdatedAt)
	}
	if !e.OldStatus.Valid() || !e.NewStatus.Valid() {
		return errors.New("status history entry: unknown status")
	}
	return nil
}

// BeforeUpdate refuses any modification of a written entry.
func (e *StatusHistoryEntry) BeforeUpdate(tx *gorm.DB) (err error) {
	return ErrHistoryImmutable
}

// BeforeDelete refuses removal of a written entry.
func (e *StatusHistoryEntry) BeforeDelete(tx *gorm.DB) (err error) {
	return ErrHistoryImmutable
}
