// Package queue keeps the FIFO queue of every plan. Positions of a plan are
// always exactly 1..N. All writers hold the plan row lock while they read
// and rewrite positions, so the operations here must run inside a
// transaction.
package queue

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
)

// LockPlan takes the row lock that serializes all queue changes of a plan.
func LockPlan(tx *gorm.DB, planID uint) (*models.Plan, error) {
	var plan models.Plan
	if err := tx.Clauses(database.ForUpdate).First(&plan, planID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("lock_plan", "plan", planID)
		}
		return nil, fmt.Errorf("lock plan %d: %w", planID, err)
	}
	return &plan, nil
}

// Enqueue appends sub to the tail of its plan's queue and mirrors the
// position onto the subscription.
func Enqueue(tx *gorm.DB, sub *models.Subscription) (*models.QueueEntry, error) {
	const op = "enqueue"

	if !sub.IsOpen() {
		return nil, apperr.InvalidState(op, "subscription", sub.ID, sub.Status, "PENDING or ACTIVE")
	}
	if _, err := LockPlan(tx, sub.PlanID); err != nil {
		return nil, err
	}

	tail, err := Tail(tx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry := &models.QueueEntry{
		PlanID:         sub.PlanID,
		SubscriptionID: sub.ID,
		Position:       tail + 1,
	}
	if err := tx.Create(entry).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, apperr.New(op, apperr.ErrDuplicate, "subscription", sub.ID, "already queued")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := setMirror(tx, sub.ID, &entry.Position); err != nil {
		return nil, err
	}
	sub.QueuePosition = &entry.Position
	return entry, nil
}

// Shift completes the head subscription of a plan, removes it from the
// queue and moves every remaining entry up by one.
func Shift(tx *gorm.DB, head *models.QueueEntry) error {
	const op = "shift"

	if !head.IsHead() {
		return apperr.InvalidState(op, "queue_entry", head.ID, fmt.Sprintf("position %d", head.Position), "position 1")
	}
	if _, err := LockPlan(tx, head.PlanID); err != nil {
		return err
	}

	now := time.Now().UTC()
	res := tx.Model(&models.Subscription{}).
		Where("id = ?", head.SubscriptionID).
		Updates(map[string]interface{}{
			"status":         models.SubscriptionStatusCompleted,
			"completed_at":   &now,
			"queue_position": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("%s: complete subscription: %w", op, res.Error)
	}

	return detach(tx, head)
}

// Remove takes any entry out of the queue and closes the gap it leaves.
func Remove(tx *gorm.DB, entry *models.QueueEntry) error {
	if _, err := LockPlan(tx, entry.PlanID); err != nil {
		return err
	}
	if err := setMirror(tx, entry.SubscriptionID, nil); err != nil {
		return err
	}
	return detach(tx, entry)
}

// LockEntry reads and locks the queue entry of a subscription.
func LockEntry(tx *gorm.DB, subscriptionID uint) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := tx.Clauses(database.ForUpdate).
		Where("subscription_id = ?", subscriptionID).
		First(&entry).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.New("lock_entry", apperr.ErrNotQueued, "subscription", subscriptionID, "")
		}
		return nil, err
	}
	return &entry, nil
}

// Head returns the entry at position 1, or nil for an empty queue.
func Head(tx *gorm.DB, planID uint) (*models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := tx.Where("plan_id = ? AND position = ?", planID, 1).Limit(1).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Tail returns the last position of a plan's queue, 0 when it is empty. The
// row is read with FOR UPDATE so it reflects commits made while the caller
// waited for the plan lock, not the snapshot its transaction started with.
func Tail(tx *gorm.DB, planID uint) (int, error) {
	var positions []int
	err := tx.Clauses(database.ForUpdate).
		Model(&models.QueueEntry{}).
		Where("plan_id = ?", planID).
		Order("position DESC").
		Limit(1).
		Pluck("position", &positions).Error
	if err != nil {
		return 0, fmt.Errorf("read tail of plan %d: %w", planID, err)
	}
	if len(positions) == 0 {
		return 0, nil
	}
	return positions[0], nil
}

// Size counts the entries queued on a plan
func Size(tx *gorm.DB, planID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.QueueEntry{}).Where("plan_id = ?", planID).Count(&n).Error
	return n, err
}

// Positions lists the queue positions of a plan in ascending order.
func Positions(tx *gorm.DB, planID uint) ([]int, error) {
	var positions []int
	err := tx.Model(&models.QueueEntry{}).
		Where("plan_id = ?", planID).
		Order("position ASC").
		Pluck("position", &positions).Error
	return positions, err
}

// Contiguous reports whether positions are exactly 1..len(positions).
func Contiguous(positions []int) bool {
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	for i, p := range sorted {
		if p != i+1 {
			return false
		}
	}
	return true
}

// detach deletes entry and closes the gap above it. Moving the tail down
// goes through negative positions first so no intermediate row ever collides
// with another on the (plan_id, position) unique index.
func detach(tx *gorm.DB, entry *models.QueueEntry) error {
	res := tx.Delete(&models.QueueEntry{}, entry.ID)
	if res.Error != nil {
		return fmt.Errorf("delete queue entry %d: %w", entry.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New("detach", apperr.ErrNotQueued, "subscription", entry.SubscriptionID, "entry already removed")
	}

	err := tx.Model(&models.QueueEntry{}).
		Where("plan_id = ? AND position > ?", entry.PlanID, entry.Position).
		UpdateColumn("position", gorm.Expr("-(position - 1)")).Error
	if err != nil {
		return fmt.Errorf("compact queue of plan %d: %w", entry.PlanID, err)
	}
	err = tx.Model(&models.QueueEntry{}).
		Where("plan_id = ? AND position < 0", entry.PlanID).
		UpdateColumn("position", gorm.Expr("-position")).Error
	if err != nil {
		return fmt.Errorf("compact queue of plan %d: %w", entry.PlanID, err)
	}

	return refreshMirrors(tx, entry.PlanID, entry.Position)
}

func setMirror(tx *gorm.DB, subscriptionID uint, position *int) error {
	err := tx.Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		UpdateColumn("queue_position", position).Error
	if err != nil {
		return fmt.Errorf("mirror queue position of subscription %d: %w", subscriptionID, err)
	}
	return nil
}

// refreshMirrors rewrites queue_position for every subscription whose entry
// now sits at or behind from.
func refreshMirrors(tx *gorm.DB, planID uint, from int) error {
	moved := tx.Model(&models.QueueEntry{}).
		Select("subscription_id").
		Where("plan_id = ? AND position >= ?", planID, from)

	err := tx.Model(&models.Subscription{}).
		Where("id IN (?)", moved).
		UpdateColumn("queue_position", gorm.Expr(
			"(SELECT q.position FROM queue_entries q WHERE q.subscription_id = subscriptions.id)")).Error
	if err != nil {
		return fmt.Errorf("refresh queue positions of plan %d: %w", planID, err)
	}
	return nil
}
