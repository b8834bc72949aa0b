package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WalletTypePlan     = "PLAN"
	WalletTypeFunding  = "FUNDING"
	WalletTypeReferral = "REFERRAL"
)

// Wallet is a per-user, per-purpose balance. PLAN wallets are additionally
// scoped to a plan. PlanKey is the plan id, or 0 for non-plan wallets, so the
// composite unique index also holds for them (NULLs never collide).
type Wallet struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"not null;index:ux_wallets_owner,unique,priority:1" json:"user_id"`
	WalletType string          `gorm:"type:varchar(20);not null;index:ux_wallets_owner,unique,priority:2" json:"wallet_type"`
	PlanKey    uint            `gorm:"not null;default:0;index:ux_wallets_owner,unique,priority:3" json:"-"`
	PlanID     *uint           `gorm:"index" json:"plan_id,omitempty"`
	Balance    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsValidWalletType reports whether t names a known wallet purpose
func IsValidWalletType(t string) bool {
	switch t {
	case WalletTypePlan, WalletTypeFunding, WalletTypeReferral:
		return true
	default:
		return false
	}
}
