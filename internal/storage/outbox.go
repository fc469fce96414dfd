package storage

import (
	"complaintdesk/backend/internal/models"
	"context"
	"log"
	"time"

	"gorm.io/gorm/clause"
)

// EnqueueNotification adds a pending notification to the outbox.
func (s *Service) EnqueueNotification(ctx context.Context, n *models.Notification) error {
	if err := s.DB.WithContext(ctx).Create(n).Error; err != nil {
		log.Printf("ERROR: Failed to enqueue %s notification for complaint %s: %v", n.Kind, n.ComplaintID, err)
		return err
	}
	return nil
}

// ClaimNotifications locks up to limit deliverable rows, oldest first: pending
// rows and sending rows whose lease expired before now. Call it inside Transaction.
func (s *Service) ClaimNotifications(ctx context.Context, limit int, now time.Time) ([]models.Notification, error) {
	var pending []models.Notification
	if err := s.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("state = ? OR (state = ? AND locked_until < ?)", models.NotificationPending, models.NotificationSending, now).
		Order("id asc").
		Limit(limit).
		Find(&pending).Error; err != nil {
		log.Printf("ERROR: Failed to claim notifications: %v", err)
		return nil, err
	}
	return pending, nil
}

func (s *Service) SaveNotification(ctx context.Context, n *models.Notification) error {
	return s.DB.WithContext(ctx).Save(n).Error
}
