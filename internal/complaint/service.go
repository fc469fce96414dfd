// Package complaint implements the complaint workflow: submission, visibility
// rules, and status transitions that keep the complaint row, its history
// ledger and the notification outbox consistent.
package complaint

import (
	"complaintdesk/backend/internal/analysis"
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/auth"
	"complaintdesk/backend/internal/changefeed"
	"complaintdesk/backend/internal/metrics"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Service handles the business logic for complaints.
type Service struct {
	Storage storage.Storage
	// Feed receives an event after every committed write. May be nil.
	Feed changefeed.Publisher
	// Now is the clock used for transition timestamps.
	Now func() time.Time

	validate *validator.Validate
}

// NewService Constructor
func NewService(s storage.Storage, feed changefeed.Publisher) *Service {
	return &Service{
		Storage:  s,
		Feed:     feed,
		Now:      func() time.Time { return time.Now().UTC() },
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("complaint_category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	return v
}

// Create stores a new complaint owned by the caller and queues the
// "complaint created" notification in the same transaction.
func (s *Service) Create(ctx context.Context, ident auth.Identity, in models.NewComplaint) (*models.Complaint, error) {
	const op = "complaint.Create"
	if ident.UserID == "" {
		return nil, apperr.Unauthorized(op, "no session")
	}

	in = normalize(in)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Validation(op, describe(err))
	}

	now := s.Now()
	c := &models.Complaint{
		StudentID:     ident.UserID,
		Title:         in.Title,
		Category:      in.Category,
		Description:   in.Description,
		Status:        models.StatusOpen,
		Priority:      in.Priority,
		AttachmentURL: in.AttachmentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		if err := tx.CreateComplaint(ctx, c); err != nil {
			return err
		}
		return tx.EnqueueNotification(ctx, &models.Notification{
			Kind:           models.NotificationComplaintCreated,
			ComplaintID:    c.ID,
			StudentID:      c.StudentID,
			ComplaintTitle: c.Title,
			Status:         c.Status,
		})
	})
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}

	metrics.ComplaintsCreated.WithLabelValues(string(c.Category)).Inc()
	log.Printf("INFO: Complaint %s created by %s (%s)", c.ID, c.StudentID, c.Category)
	s.publish(ctx, changefeed.KindInsert, c)
	return c, nil
}

// Get returns a complaint the caller is allowed to see. Complaints owned by
// someone else are reported as missing.
func (s *Service) Get(ctx context.Context, ident auth.Identity, id string) (*models.Complaint, error) {
	const op = "complaint.Get"
	if !validID(id) {
		return nil, apperr.NotFound(op, "complaint", id)
	}
	c, err := s.Storage.GetComplaint(ctx, id)
	if err != nil {
		return nil, storeError(op, "complaint", id, err)
	}
	if !ident.CanView(c.StudentID) {
		return nil, apperr.NotFound(op, "complaint", id)
	}
	return c, nil
}

// ListForOwner returns a student's complaints, newest first.
func (s *Service) ListForOwner(ctx context.Context, ident auth.Identity, studentID string) ([]models.Complaint, error) {
	const op = "complaint.ListForOwner"
	if !ident.CanView(studentID) {
		return nil, apperr.Forbidden(op, "cannot list another student's complaints")
	}
	if !validID(studentID) {
		return nil, apperr.Validation(op, fmt.Sprintf("invalid student id %q", studentID))
	}
	complaints, err := s.Storage.ListComplaintsForOwner(ctx, studentID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return complaints, nil
}

// ListAll returns every complaint, newest first. Administrators only.
func (s *Service) ListAll(ctx context.Context, ident auth.Identity) ([]models.Complaint, error) {
	const op = "complaint.ListAll"
	if !ident.IsAdmin() {
		return nil, apperr.Forbidden(op, "administrators only")
	}
	complaints, err := s.Storage.ListComplaints(ctx)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return complaints, nil
}

// List returns what the caller's dashboard shows: everything for
// administrators, their own complaints for students.
func (s *Service) List(ctx context.Context, ident auth.Identity) ([]models.Complaint, error) {
	if ident.IsAdmin() {
		return s.ListAll(ctx, ident)
	}
	return s.ListForOwner(ctx, ident, ident.UserID)
}

// Transition moves a complaint to newStatus. The complaint update, its
// history entry and the "status updated" notification are written in one
// transaction while the complaint row is locked, so concurrent transitions
// on the same complaint are applied one after another.
func (s *Service) Transition(ctx context.Context, ident auth.Identity, id string, newStatus models.Status, remarks string) (updated *models.Complaint, err error) {
	const op = "complaint.Transition"
	var oldStatus models.Status
	defer func() {
		if err != nil {
			metrics.TransitionFailures.WithLabelValues(apperr.KindOf(err).String()).Inc()
			return
		}
		metrics.Transitions.WithLabelValues(string(oldStatus), string(newStatus)).Inc()
	}()

	if !newStatus.Valid() {
		return nil, apperr.Validation(op, fmt.Sprintf("unknown status %q", newStatus))
	}
	if !ident.IsAdmin() {
		return nil, apperr.Forbidden(op, "only administrators can change a complaint's status")
	}
	if !validID(id) {
		return nil, apperr.NotFound(op, "complaint", id)
	}

	var note *string
	if strings.TrimSpace(remarks) != "" {
		note = &remarks
	}
	actor := ident.UserID
	var resolvedBy *string
	if newStatus == models.StatusResolved {
		resolvedBy = &actor
	}

	err = s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		current, err := tx.GetComplaintForUpdate(ctx, id)
		if err != nil {
			return storeError(op, "complaint", id, err)
		}
		oldStatus = current.Status

		now := s.Now()
		updated, err = tx.UpdateComplaint(ctx, id, models.ComplaintUpdate{
			Status:       newStatus,
			AdminRemarks: note,
			ResolvedBy:   resolvedBy,
			UpdatedAt:    now,
		})
		if err != nil {
			return storeError(op, "complaint", id, err)
		}

		if err := tx.AppendHistory(ctx, &models.StatusHistoryEntry{
			ComplaintID: id,
			OldStatus:   oldStatus,
			NewStatus:   newStatus,
			Remarks:     note,
			UpdatedBy:   actor,
			UpdatedAt:   now,
		}); err != nil {
			return apperr.Persistence(op, err)
		}

		if err := tx.EnqueueNotification(ctx, &models.Notification{
			Kind:           models.NotificationStatusUpdated,
			ComplaintID:    id,
			StudentID:      updated.StudentID,
			ComplaintTitle: updated.Title,
			Status:         newStatus,
			AdminRemarks:   note,
		}); err != nil {
			return apperr.Persistence(op, err)
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Persistence(op, err)
		}
		log.Printf("ERROR: Transition of complaint %s to %q by %s failed: %v", id, newStatus, actor, err)
		return nil, err
	}

	log.Printf("INFO: Complaint %s moved from %q to %q by %s", id, oldStatus, newStatus, actor)
	s.publish(ctx, changefeed.KindUpdate, updated)
	return updated, nil
}

// History returns the status ledger of a complaint the caller can see, newest first.
func (s *Service) History(ctx context.Context, ident auth.Identity, id string) ([]models.StatusHistoryEntry, error) {
	const op = "complaint.History"
	if _, err := s.Get(ctx, ident, id); err != nil {
		return nil, err
	}
	history, err := s.Storage.ListHistory(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return history, nil
}

// Stats returns dashboard counts over all complaints. Administrators only.
func (s *Service) Stats(ctx context.Context, ident auth.Identity) (analysis.Summary, error) {
	complaints, err := s.ListAll(ctx, ident)
	if err != nil {
		return analysis.Summary{}, err
	}
	return analysis.Summarize(complaints), nil
}

func (s *Service) publish(ctx context.Context, kind changefeed.Kind, c *models.Complaint) {
	if s.Feed == nil {
		return
	}
	if err := s.Feed.Publish(ctx, changefeed.ComplaintEvent(kind, c)); err != nil {
		log.Printf("WARNING: Failed to publish %s event for complaint %s: %v", kind, c.ID, err)
	}
}

func storeError(op, what, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(op, what, id)
	}
	return apperr.Persistence(op, err)
}
