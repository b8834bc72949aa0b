package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contribution is the append-only audit record of one matched payment
// from one subscription into another.
type Contribution struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	FromSubscriptionID uint            `gorm:"not null;index" json:"from_subscription_id"`
	ToSubscriptionID   uint            `gorm:"not null;index" json:"to_subscription_id"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	IdempotencyKey     *string         `gorm:"type:varchar(100);uniqueIndex" json:"idempotency_key,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}
