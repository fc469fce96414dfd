// Package analysis computes the aggregate figures shown on the admin dashboard.
package analysis

import "complaintdesk/backend/internal/models"

// Summary counts complaints by status and by category.
// Every known status and category is present, with zero when unused.
type Summary struct {
	Total      int                     `json:"total"`
	ByStatus   map[models.Status]int   `json:"by_status"`
	ByCategory map[models.Category]int `json:"by_category"`
}

// Summarize counts complaints. Values outside the known enumerations are
// counted in Total only.
func Summarize(complaints []models.Complaint) Summary {
	s := Summary{
		ByStatus:   make(map[models.Status]int, len(models.Statuses)),
		ByCategory: make(map[models.Category]int, len(models.Categories)),
	}
	for _, st := range models.Statuses {
		s.ByStatus[st] = 0
	}
	for _, cat := range models.Categories {
		s.ByCategory[cat] = 0
	}

	for _, c := range complaints {
		s.Total++
		if c.Status.Valid() {
			s.ByStatus[c.Status]++
		}
		if c.Category.Valid() {
			s.ByCategory[c.Category]++
		}
	}
	return s
}

// Pending is the number of complaints not yet resolved.
func (s Summary) Pending() int {
	return s.ByStatus[models.StatusOpen] + s.ByStatus[models.StatusInProgress]
}
