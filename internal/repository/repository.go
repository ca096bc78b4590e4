package repository

import (
	"context"

	"commitfi/internal/models"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserWalletAddress retrieves the wallet address for a user
func (r *Repository) GetUserWalletAddress(ctx context.Context, userID uint) (string, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("wallet_address").Where("id = ?", userID).First(&user).Error
	if err != nil {
		return "", err
	}
	return user.WalletAddress, nil
}
