package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral records the one bonus paid to a referrer for one subscription of a referred user.
type Referral struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ReferrerID     uint            `gorm:"not null;index:ux_referrals_event,unique,priority:1" json:"referrer_id"`
	ReferredUserID uint            `gorm:"not null;index:ux_referrals_event,unique,priority:2" json:"referred_user_id"`
	SubscriptionID uint            `gorm:"not null;index:ux_referrals_event,unique,priority:3" json:"subscription_id"`
	BonusAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"bonus_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ReferralBonus computes the bonus for a contribution at the given rate, rounded to cents.
func ReferralBonus(contribution, rate decimal.Decimal) decimal.Decimal {
	return contribution.Mul(rate).Round(2)
}
