package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusApproved  = "APPROVED"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusRejected  = "REJECTED"
)

// Withdrawal is a payout request. Exactly one of WalletID and SubscriptionID
// names where the money was taken from.
type Withdrawal struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Fee            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"fee"`
	Status         string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	TransactionID  uint            `gorm:"not null;uniqueIndex" json:"transaction_id"`
	Transaction    *Transaction    `gorm:"foreignKey:TransactionID" json:"-"`
	WalletID       *uint           `gorm:"index" json:"wallet_id,omitempty"`
	SubscriptionID *uint           `gorm:"index" json:"subscription_id,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	ProcessedAt    *time.Time      `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
}

// WithdrawalFee computes the fee charged on amount at the given rate,
// rounded to cents.
func WithdrawalFee(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

// NetAmount is what the user receives once the fee is deducted
func (w *Withdrawal) NetAmount() decimal.Decimal {
	return w.Amount.Sub(w.Fee)
}

func (w *Withdrawal) IsPending() bool {
	return w.Status == WithdrawalStatusPending
}
