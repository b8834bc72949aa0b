package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
)

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByUser returns the subscriptions of a user, newest first
func (r *subscriptionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// queueRepository implements the QueueRepository interface
type queueRepository struct {
	db *gorm.DB
}

// NewQueueRepository creates a new queue repository instance
func NewQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db}
}

// ListByPlan returns the queue of a plan in position order
func (r *queueRepository) ListByPlan(ctx context.Context, planID uint) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := r.db.WithContext(ctx).Where("plan_id = ?", planID).Order("position ASC").Find(&entries).Error
	return entries, err
}

type contributionRepository struct {
	db *gorm.DB
}

func NewContributionRepository(db *gorm.DB) ContributionRepository {
	return &contributionRepository{db: db}
}

func (r *contributionRepository) ListReceived(ctx context.Context, subscriptionID uint) ([]models.Contribution, error) {
	var list []models.Contribution
	err := r.db.WithContext(ctx).Where("to_subscription_id = ?", subscriptionID).Order("id DESC").Find(&list).Error
	return list, err
}

func (r *contributionRepository) ListSent(ctx context.Context, subscriptionID uint) ([]models.Contribution, error) {
	var list []models.Contribution
	err := r.db.WithContext(ctx).Where("from_subscription_id = ?", subscriptionID).Order("id DESC").Find(&list).Error
	return list, err
}
