// Package notify delivers queued notifications about complaints to the
// student and to administrators.
//
// Writers only insert outbox rows (see models.Notification). A Worker claims
// pending rows, resolves the student's profile and hands a Payload to a
// Dispatcher: mail through Resend, a generic webhook, a Telegram chat, or
// any combination of them.
package notify

import (
	"complaintdesk/backend/internal/models"
)

// Payload is the message handed to a Dispatcher. Its JSON form is what the
// webhook dispatcher posts.
type Payload struct {
	Type           models.NotificationKind `json:"type"`
	StudentEmail   string                  `json:"studentEmail"`
	StudentName    string                  `json:"studentName"`
	ComplaintTitle string                  `json:"complaintTitle"`
	ComplaintID    string                  `json:"complaintId"`
	Status         models.Status           `json:"status,omitempty"`
	AdminRemarks   string                  `json:"adminRemarks,omitempty"`
	AdminEmails    []string                `json:"adminEmails,omitempty"`
}

// BuildPayload combines an outbox row with the student's profile. A nil
// profile yields an empty email and the generic display name.
// adminEmails applies to "complaint created" rows that carry no list of their own.
func BuildPayload(n models.Notification, profile *models.Profile, adminEmails []string) Payload {
	p := Payload{
		Type:           n.Kind,
		StudentName:    profile.DisplayName(),
		ComplaintTitle: n.ComplaintTitle,
		ComplaintID:    n.ComplaintID,
	}
	if profile != nil {
		p.StudentEmail = profile.Email
	}

	switch n.Kind {
	case models.NotificationStatusUpdated:
		p.Status = n.Status
		if n.AdminRemarks != nil {
			p.AdminRemarks = *n.AdminRemarks
		}
	case models.NotificationComplaintCreated:
		if len(n.AdminEmails) > 0 {
			p.AdminEmails = append([]string(nil), n.AdminEmails...)
		} else {
			p.AdminEmails = append([]string(nil), adminEmails...)
		}
	}
	return p
}

// ShortID returns the first eight characters of a complaint id, as shown to people.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
