// Package storage persists complaints, their status history, the notification
// outbox and the read-only profile directory in PostgreSQL, with Redis used as
// a role cache.
package storage

import (
	"complaintdesk/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: record not found")

// ComplaintStore holds complaint records.
type ComplaintStore interface {
	CreateComplaint(ctx context.Context, complaint *models.Complaint) error
	GetComplaint(ctx context.Context, id string) (*models.Complaint, error)
	// GetComplaintForUpdate reads the row and locks it until the surrounding transaction ends.
	GetComplaintForUpdate(ctx context.Context, id string) (*models.Complaint, error)
	ListComplaintsForOwner(ctx context.Context, studentID string) ([]models.Complaint, error)
	ListComplaints(ctx context.Context) ([]models.Complaint, error)
	UpdateComplaint(ctx context.Context, id string, upd models.ComplaintUpdate) (*models.Complaint, error)
}

// HistoryLedger is the append-only log of status transitions.
type HistoryLedger interface {
	AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error
	ListHistory(ctx context.Context, complaintID string) ([]models.StatusHistoryEntry, error)
}

// ProfileDirectory resolves users to their profile and role.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetRole(ctx context.Context, userID string) (models.Role, error)
	SetRole(ctx context.Context, userID string, role models.Role) error
}

// Outbox queues notifications for asynchronous delivery.
type Outbox interface {
	EnqueueNotification(ctx context.Context, n *models.Notification) error
	// ClaimNotifications returns deliverable rows, skipping rows locked by another worker.
	ClaimNotifications(ctx context.Context, limit int, now time.Time) ([]models.Notification, error)
	SaveNotification(ctx context.Context, n *models.Notification) error
}

// Storage is the full persistence contract.
type Storage interface {
	ComplaintStore
	HistoryLedger
	ProfileDirectory
	Outbox

	// Transaction runs fn against a Storage bound to one database transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Storage) error) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. rdb may be nil, which disables the role cache.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// AutoMigrate creates or updates every table owned by this service.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Profile{},
		&models.UserRole{},
		&models.Complaint{},
		&models.StatusHistoryEntry{},
		&models.Notification{},
	)
}

func (s *Service) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Redis: s.Redis})
	})
}

// CreateComplaint inserts a new complaint. ID, status and timestamps are filled in when empty.
func (s *Service) CreateComplaint(ctx context.Context, complaint *models.Complaint) error {
	if err := s.DB.WithContext(ctx).Create(complaint).Error; err != nil {
		log.Printf("ERROR: Failed to save complaint for student %s: %v", complaint.StudentID, err)
		return err
	}
	return nil
}

func (s *Service) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	return s.firstComplaint(s.DB.WithContext(ctx), id)
}

func (s *Service) GetComplaintForUpdate(ctx context.Context, id string) (*models.Complaint, error) {
	return s.firstComplaint(s.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *Service) firstComplaint(db *gorm.DB, id string) (*models.Complaint, error) {
	var complaint models.Complaint
	err := db.Where("id = ?", id).First(&complaint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get complaint %s: %v", id, err)
		return nil, err
	}
	return &complaint, nil
}

// ListComplaintsForOwner returns the student's complaints, newest first.
func (s *Service) ListComplaintsForOwner(ctx context.Context, studentID string) ([]models.Complaint, error) {
	var complaints []models.Complaint
	if err := s.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at desc").
		Find(&complaints).Error; err != nil {
		log.Printf("ERROR: Failed to list complaints for student %s: %v", studentID, err)
		return nil, err
	}
	return complaints, nil
}

// ListComplaints returns every complaint, newest first.
func (s *Service) ListComplaints(ctx context.Context) ([]models.Complaint, error) {
	var complaints []models.Complaint
	if err := s.DB.WithContext(ctx).Order("created_at desc").Find(&complaints).Error; err != nil {
		log.Printf("ERROR: Failed to list complaints: %v", err)
		return nil, err
	}
	return complaints, nil
}

// UpdateComplaint writes the transition fields of a complaint and returns the updated row.
func (s *Service) UpdateComplaint(ctx context.Context, id string, upd models.ComplaintUpdate) (*models.Complaint, error) {
	if !upd.Status.Valid() {
		return nil, fmt.Errorf("update complaint %s: unknown status %q", id, upd.Status)
	}
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = time.Now().UTC()
	}

	result := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        upd.Status,
			"admin_remarks": upd.AdminRemarks,
			"resolved_by":   upd.ResolvedBy,
			"updated_at":    upd.UpdatedAt,
		})
	if result.Error != nil {
		log.Printf("ERROR: Failed to update complaint %s: %v", id, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetComplaint(ctx, id)
}

// AppendHistory writes a new ledger entry. Entries are never updated afterwards.
func (s *Service) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		log.Printf("ERROR: Failed to append status history for complaint %s: %v", entry.ComplaintID, err)
		return err
	}
	return nil
}

// ListHistory returns the ledger of a complaint, newest first.
func (s *Service) ListHistory(ctx context.Context, complaintID string) ([]models.StatusHistoryEntry, error) {
	var history []models.StatusHistoryEntry
	if err := s.DB.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("updated_at desc").
		Order("id desc").
		Find(&history).Error; err != nil {
		log.Printf("ERROR: Failed to get status history for complaint %s: %v", complaintID, err)
		return nil, err
	}
	return history, nil
}
