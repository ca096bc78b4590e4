package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"commitfi/internal/models"
	"commitfi/internal/repository"
)

// UserService handles user-related business logic
type UserService struct {
	db   *gorm.DB
	repo *repository.Repository
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, repo *repository.Repository) *UserService {
	return &UserService{db: db, repo: repo}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateNickname updates the user's nickname, rejecting taken names
func (s *UserService) UpdateNickname(userID uint, nickname string) error {
	var count int64
	if err := s.db.Model(&models.User{}).
		Where("nickname = ? AND id != ?", nickname, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("nickname already taken")
	}

	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("nickname", nickname).Error
}

// GetStatistics retrieves a user's aggregate challenge statistics
func (s *UserService) GetStatistics(ctx context.Context, userID uint) (*models.ParticipantStatistics, error) {
	return s.repo.GetParticipantStatistics(ctx, userID)
}
