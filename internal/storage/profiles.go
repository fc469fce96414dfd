package storage

import (
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func roleKey(userID string) string {
	return "role:" + userID
}

// GetProfile reads a user's directory entry.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get profile %s: %v", userID, err)
		return nil, err
	}
	return &profile, nil
}

// GetRole returns the user's role, checking Redis first (fast path).
// Users without a role row are students.
func (s *Service) GetRole(ctx context.Context, userID string) (models.Role, error) {
	if s.Redis != nil {
		cached, err := s.Redis.Get(ctx, roleKey(userID)).Result()
		if err == nil && models.Role(cached).Valid() {
			return models.Role(cached), nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("WARNING: Role cache read failed for %s: %v", userID, err)
		}
	}

	role := models.RoleStudent
	var row models.UserRole
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	switch {
	case err == nil && row.Role.Valid():
		role = row.Role
	case err == nil:
		log.Printf("WARNING: Unknown role %q for %s, treating as student", row.Role, userID)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		log.Printf("ERROR: Failed to get role for %s: %v", userID, err)
		return "", err
	}

	if s.Redis != nil {
		if err := s.Redis.Set(ctx, roleKey(userID), string(role), config.RoleCacheTTL).Err(); err != nil {
			log.Printf("WARNING: Role cache write failed for %s: %v", userID, err)
		}
	}
	return role, nil
}

// SetRole upserts the user's role and drops the cached value.
func (s *Service) SetRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("set role for %s: unknown role %q", userID, role)
	}

	row := models.UserRole{UserID: userID, Role: role}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&row).Error; err != nil {
		log.Printf("ERROR: Failed to set role for %s: %v", userID, err)
		return err
	}

	if s.Redis != nil {
		if err := s.Redis.Del(ctx, roleKey(userID)).Err(); err != nil {
			log.Printf("WARNING: Role cache invalidation failed for %s: %v", userID, err)
		}
	}
	return nil
}
