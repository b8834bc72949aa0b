package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SubscriptionStatusPending   = "PENDING"
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusCompleted = "COMPLETED"
	SubscriptionStatusCancelled = "CANCELLED"
)

// Subscription is one user's membership in one plan cycle.
// QueuePosition mirrors the QueueEntry row and is refreshed by the queue engine;
// nil once the subscription has left the queue.
type Subscription struct {
	ID                     uint            `gorm:"primaryKey" json:"id"`
	UserID                 uint            `gorm:"not null;index" json:"user_id"`
	User                   *User           `gorm:"foreignKey:UserID" json:"-"`
	PlanID                 uint            `gorm:"not null;index:idx_subscriptions_plan_status,priority:1" json:"plan_id"`
	Plan                   *Plan           `gorm:"foreignKey:PlanID" json:"-"`
	Status                 string          `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_subscriptions_plan_status,priority:2" json:"status"`
	QueuePosition          *int            `json:"queue_position,omitempty"`
	JoinedAt               time.Time       `gorm:"not null" json:"joined_at"`
	CompletedAt            *time.Time      `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	TotalReceived          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_received"`
	AvailableForWithdrawal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"available_for_withdrawal"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// IsOpen reports whether the subscription can still move through its cycle
func (s *Subscription) IsOpen() bool {
	return s.Status == SubscriptionStatusPending || s.Status == SubscriptionStatusActive
}
