package models

import "time"

// QueueEntry places an open subscription in its plan's FIFO queue.
// Positions of a plan are always exactly 1..N; position 1 is the head.
// PaymentsReceived only advances while the entry is at the head.
type QueueEntry struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	PlanID           uint          `gorm:"not null;index:ux_queue_entries_plan_position,unique,priority:1" json:"plan_id"`
	SubscriptionID   uint          `gorm:"not null;uniqueIndex" json:"subscription_id"`
	Subscription     *Subscription `gorm:"foreignKey:SubscriptionID" json:"-"`
	Position         int           `gorm:"not null;index:ux_queue_entries_plan_position,unique,priority:2" json:"position"`
	PaymentsReceived int           `gorm:"not null;default:0" json:"payments_received"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (q *QueueEntry) IsHead() bool {
	return q.Position == 1
}
