package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const referralCodeLength = 10

// User is the identity the settlement core works against. Authentication lives
// outside this service; only the referrer relation matters here.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Username     string    `gorm:"type:varchar(150)" json:"username" validate:"required,min=3,max=150"`
	ReferralCode string    `gorm:"uniqueIndex;type:varchar(10)" json:"referral_code"`
	ReferredByID *uint     `gorm:"index" json:"referred_by_id,omitempty"`
	ReferredBy   *User     `gorm:"foreignKey:ReferredByID" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// HasReferrer reports whether the user joined through someone else's code
func (u *User) HasReferrer() bool {
	return u != nil && u.ReferredByID != nil && *u.ReferredByID != 0
}

// GenerateReferralCode assigns a fresh random referral code to the user
func (u *User) GenerateReferralCode() error {
	b := make([]byte, referralCodeLength/2)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	u.ReferralCode = strings.ToUpper(hex.EncodeToString(b))
	return nil
}

// NormalizeReferralCode trims and upper-cases a user supplied code
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
