// Package changefeed pushes complaint mutations to connected viewers.
//
// Writers publish an Event after their transaction commits. With Redis
// configured, events travel over a Pub/Sub channel so every server instance
// sees them; each instance fans them out to its local subscribers through a
// Hub. Subscribers filter by table and, optionally, by owner.
package changefeed

import (
	"complaintdesk/backend/internal/models"
	"context"
	"time"
)

// TableComplaints is the only table currently published.
const TableComplaints = "complaints"

// Kind is the type of row change.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event describes one row change.
type Event struct {
	Table       string            `json:"table"`
	Kind        Kind              `json:"kind"`
	ComplaintID string            `json:"complaint_id"`
	OwnerID     string            `json:"owner_id"`
	Complaint   *models.Complaint `json:"complaint,omitempty"`
	At          time.Time         `json:"at"`
}

// ComplaintEvent builds an event for a complaint row.
func ComplaintEvent(kind Kind, c *models.Complaint) Event {
	return Event{
		Table:       TableComplaints,
		Kind:        kind,
		ComplaintID: c.ID,
		OwnerID:     c.StudentID,
		Complaint:   c,
		At:          time.Now().UTC(),
	}
}

// Filter selects the events a subscriber receives.
type Filter struct {
	Table string
	// OwnerID restricts events to rows owned by this user. Empty means all rows.
	OwnerID string
}

// Matches reports whether evt passes the filter.
func (f Filter) Matches(evt Event) bool {
	if f.Table != "" && f.Table != evt.Table {
		return false
	}
	return f.OwnerID == "" || f.OwnerID == evt.OwnerID
}

// Publisher hands an event to the feed.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}
