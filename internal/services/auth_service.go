package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"commitfi/internal/models"
	"commitfi/internal/utils"
)

// AuthService handles authentication business logic
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// ProcessWalletLogin finds or creates a user by wallet address
func (s *AuthService) ProcessWalletLogin(walletAddress string) (*models.User, error) {
	var user models.User

	result := s.db.Where("wallet_address = ?", walletAddress).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		nickname, err := s.uniqueNickname()
		if err != nil {
			return nil, fmt.Errorf("failed to generate nickname: %w", err)
		}

		user = models.User{
			WalletAddress: walletAddress,
			Nickname:      nickname,
		}

		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		log.Printf("New user created: wallet=%s nickname=%s (ID: %d)", walletAddress, nickname, user.ID)
	} else if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	} else {
		log.Printf("User logged in: wallet=%s (ID: %d)", walletAddress, user.ID)
	}

	return &user, nil
}

// GetUserByID retrieves a user by their ID
func (s *AuthService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// uniqueNickname retries generation until the nickname is free
func (s *AuthService) uniqueNickname() (string, error) {
	for i := 0; i < 5; i++ {
		nickname, err := utils.GenerateNickname()
		if err != nil {
			return "", err
		}

		var count int64
		if err := s.db.Model(&models.User{}).Where("nickname = ?", nickname).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return nickname, nil
		}
	}
	return "", fmt.Errorf("could not find a free nickname")
}
