// Package users registers the people taking part in plans and resolves who
// referred them.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/app/repository"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
	"github.com/ManuelReschke/Agape/internal/pkg/ledger"
)

const maxCodeAttempts = 5

// RegisterInput is what a new user provides. ReferralCode is optional.
type RegisterInput struct {
	Email        string `json:"email" validate:"required,email,max=200"`
	Username     string `json:"username" validate:"required,min=3,max=150"`
	ReferralCode string `json:"referral_code" validate:"omitempty,len=10,alphanum"`
}

type Service struct {
	db       *gorm.DB
	users    repository.UserRepository
	validate *validator.Validate
}

func NewService(db *gorm.DB, users repository.UserRepository) *Service {
	return &Service{db: db, users: users, validate: validator.New()}
}

// Register stores a new user with its own referral code and opens the
// FUNDING and REFERRAL wallets every user has.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "register_user"

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.ReferralCode = models.NormalizeReferralCode(in.ReferralCode)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Wrap(op, apperr.ErrInvalidArgument, err)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperr.New(op, apperr.ErrDuplicate, "", 0, "email already registered")
	} else if !database.IsNotFound(err) {
		return nil, err
	}

	user := &models.User{Email: in.Email, Username: in.Username}
	if in.ReferralCode != "" {
		referrer, err := s.users.GetByReferralCode(ctx, in.ReferralCode)
		if err != nil {
			if database.IsNotFound(err) {
				return nil, apperr.New(op, apperr.ErrInvalidArgument, "", 0, "unknown referral code")
			}
			return nil, err
		}
		user.ReferredByID = &referrer.ID
	}

	err := database.RunInTx(ctx, s.db, op, func(tx *gorm.DB) error {
		if err := assignReferralCode(tx, user); err != nil {
			return err
		}
		if err := tx.Omit("ReferredBy").Create(user).Error; err != nil {
			if database.IsDuplicate(err) {
				return apperr.Wrap(op, apperr.ErrDuplicate, err)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		for _, walletType := range []string{models.WalletTypeFunding, models.WalletTypeReferral} {
			if _, err := ledger.GetOrCreateWallet(tx, user.ID, walletType, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Users] Registered user %d (%s)", user.ID, user.Username)
	return user, nil
}

// Get reads a user
func (s *Service) Get(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("get_user", "user", userID)
		}
		return nil, err
	}
	return user, nil
}

// Referred lists the users who registered with userID's referral code.
func (s *Service) Referred(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.users.ListReferred(ctx, userID)
}

func assignReferralCode(tx *gorm.DB, user *models.User) error {
	for i := 0; i < maxCodeAttempts; i++ {
		if err := user.GenerateReferralCode(); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.User{}).Where("referral_code = ?", user.ReferralCode).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return fmt.Errorf("no free referral code after %d attempts", maxCodeAttempts)
}
