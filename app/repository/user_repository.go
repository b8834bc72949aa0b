package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("referral_code = ?", models.NormalizeReferralCode(code)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListReferred returns the users who joined with referrerID's code
func (r *userRepository) ListReferred(ctx context.Context, referrerID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("referred_by_id = ?", referrerID).Order("id ASC").Find(&users).Error
	return users, err
}
