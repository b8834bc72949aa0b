package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit             = "DEPOSIT"
	TransactionTypeWithdrawal          = "WITHDRAWAL"
	TransactionTypeReferralBonus       = "REFERRAL_BONUS"
	TransactionTypeSubscriptionPayment = "SUBSCRIPTION_PAYMENT"
	TransactionTypeQueuePayment        = "QUEUE_PAYMENT"
	TransactionTypeRefund              = "REFUND"
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
	TransactionStatusCancelled = "CANCELLED"
)

// Transaction is the immutable money movement log. Only Status and
// CompletedAt change after insert.
type Transaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	TransactionType string          `gorm:"type:varchar(30);not null;index" json:"transaction_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status          string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ExternalID      string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"external_id"`
	Description     string          `gorm:"type:text" json:"description"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	CompletedAt     *time.Time      `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
}
