package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

// Statuses lists every recognised status in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved}

// Valid reports whether s is one of the recognised statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// ParseStatus converts raw input into a Status, rejecting anything outside the enumeration.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Category is the area a complaint is raised against.
type Category string

const (
	CategoryAdmin              Category = "Admin"
	CategoryMentor             Category = "Mentor"
	CategoryAcademicCounsellor Category = "Academic Counsellor"
	CategoryWorkingHub         Category = "Working Hub"
	CategoryPeer               Category = "Peer"
	CategoryOther              Category = "Other"
)

// Categories lists every recognised category.
var Categories = []Category{
	CategoryAdmin,
	CategoryMentor,
	CategoryAcademicCounsellor,
	CategoryWorkingHub,
	CategoryPeer,
	CategoryOther,
}

// Valid reports whether c is one of the recognised categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Complaint is an issue submitted by a student.
// Only Status, AdminRemarks, ResolvedBy and UpdatedAt change after creation.
type Complaint struct {
	// ID is generated on insert and never changes.
	ID string `gorm:"type:uuid;primaryKey" json:"id"`
	// StudentID references the owning profile.
	StudentID   string   `gorm:"type:uuid;not null;index" json:"student_id"`
	Title       string   `gorm:"type:text;not null" json:"title"`
	Category    Category `gorm:"type:text;not null" json:"category"`
	Description string   `gorm:"type:text;not null" json:"description"`
	Status      Status   `gorm:"type:text;not null;index" json:"status"`
	// Priority is free text supplied by the student, if any.
	Priority      *string `gorm:"type:text" json:"priority,omitempty"`
	AttachmentURL *string `gorm:"type:text" json:"attachment_url,omitempty"`
	// AdminRemarks holds the remarks of the latest transition only.
	AdminRemarks *string `gorm:"type:text" json:"admin_remarks,omitempty"`
	// ResolvedBy is set when, and only when, the latest transition resolved the complaint.
	ResolvedBy *string   `gorm:"type:uuid" json:"resolved_by,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate fills in the identifier and initial status and rejects
// rows whose enumerations are out of range.
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusOpen
	}
	if !c.Status.Valid() {
		return fmt.Errorf("complaint %s: unknown status %q", c.ID, c.Status)
	}
	if !c.Category.Valid() {
		return fmt.Errorf("complaint %s: unknown category %q", c.ID, c.Category)
	}
	return nil
}

// NewComplaint is the student-supplied part of a complaint.
type NewComplaint struct {
	Title         string   `json:"title" validate:"required,max=200"`
	Category      Category `json:"category" validate:"required,complaint_category"`
	Description   string   `json:"description" validate:"required,max=5000"`
	Priority      *string  `json:"priority,omitempty" validate:"omitempty,max=32"`
	AttachmentURL *string  `json:"attachment_url,omitempty" validate:"omitempty,url"`
}

// ComplaintUpdate carries the fields a transition may change.
// Nil pointers are written as NULL.
type ComplaintUpdate struct {
	Status       Status
	AdminRemarks *string
	ResolvedBy   *string
	UpdatedAt    time.Time
}
