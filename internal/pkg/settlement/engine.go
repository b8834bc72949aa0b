// Package settlement drives subscriptions through their cycle: joining a
// plan, matching payments into the head of the plan's queue and paying the
// head out once its quota is met.
//
// Every operation is one database transaction. Locks are taken in the order
// plan, subscription, queue entry, wallets. A successor plan is locked after
// its predecessor and the catalog keeps the chain acyclic.
package settlement

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/cache"
	"github.com/ManuelReschke/Agape/internal/pkg/config"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
	"github.com/ManuelReschke/Agape/internal/pkg/ledger"
	"github.com/ManuelReschke/Agape/internal/pkg/queue"
	"github.com/ManuelReschke/Agape/internal/pkg/referral"
)

type Engine struct {
	db       *gorm.DB
	cache    *cache.Store
	settings config.Settings
}

func NewEngine(db *gorm.DB, store *cache.Store, settings config.Settings) *Engine {
	return &Engine{db: db, cache: store, settings: settings}
}

// CreateSubscription enrolls a user into a plan: a PENDING subscription at
// the tail of the plan's queue, the user's PLAN wallet for it and, when the
// user was referred, the referrer's bonus.
func (e *Engine) CreateSubscription(ctx context.Context, userID, planID uint) (*models.Subscription, error) {
	const op = "create_subscription"

	var (
		sub  *models.Subscription
		keys cache.Keys
	)
	err := database.RunInTx(ctx, e.db, op, func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound(op, "user", userID)
			}
			return err
		}

		plan, err := queue.LockPlan(tx, planID)
		if err != nil {
			return err
		}

		sub, err = subscribe(tx, user.ID, plan)
		if err != nil {
			return err
		}
		keys.Add(cache.PlanQueueKey(plan.ID), cache.WalletsKey(user.ID))

		ref, err := referral.CreateBonus(tx, sub, e.settings.ReferralBonusRate)
		if err != nil {
			return err
		}
		if ref != nil {
			keys.Add(cache.WalletsKey(ref.ReferrerID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.Invalidate(ctx, keys.List()...)
	log.Infof("[Settlement] User %d joined plan %d as subscription %d at position %d", userID, planID, sub.ID, *sub.QueuePosition)
	return sub, nil
}

// ActivateSubscription confirms the entry payment of a PENDING subscription
// so it can receive contributions.
func (e *Engine) ActivateSubscription(ctx context.Context, subscriptionID uint) (*models.Subscription, error) {
	const op = "activate_subscription"

	var sub *models.Subscription
	err := database.RunInTx(ctx, e.db, op, func(tx *gorm.DB) error {
		var (
			plan *models.Plan
			err  error
		)
		plan, sub, err = lockSubscription(tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != models.SubscriptionStatusPending {
			return apperr.InvalidState(op, "subscription", sub.ID, sub.Status, models.SubscriptionStatusPending)
		}

		if err := setStatus(tx, sub, models.SubscriptionStatusPending, models.SubscriptionStatusActive); err != nil {
			return err
		}
		_, err = ledger.RecordTransaction(tx, sub.UserID, models.TransactionTypeSubscriptionPayment,
			plan.ContributionAmount, models.TransactionStatusCompleted, "Entry payment for "+plan.Name)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.cache.Invalidate(ctx, cache.PlanQueueKey(sub.PlanID))
	log.Infof("[Settlement] Subscription %d activated", sub.ID)
	return sub, nil
}

// CancelSubscription closes an open subscription and takes it out of the queue.
func (e *Engine) CancelSubscription(ctx context.Context, subscriptionID uint) (*models.Subscription, error) {
	const op = "cancel_subscription"

	var sub *models.Subscription
	err := database.RunInTx(ctx, e.db, op, func(tx *gorm.DB) error {
		var err error
		_, sub, err = lockSubscription(tx, subscriptionID)
		if err != nil {
			return err
		}
		if !sub.IsOpen() {
			return apperr.InvalidState(op, "subscription", sub.ID, sub.Status, "PENDING or ACTIVE")
		}

		if err := setStatus(tx, sub, sub.Status, models.SubscriptionStatusCancelled); err != nil {
			return err
		}

		entry, err := queue.LockEntry(tx, sub.ID)
		if err != nil {
			if apperr.Kind(err) == apperr.ErrNotQueued {
				return nil
			}
			return err
		}
		if err := queue.Remove(tx, entry); err != nil {
			return err
		}
		sub.QueuePosition = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.Invalidate(ctx, cache.PlanQueueKey(sub.PlanID))
	log.Infof("[Settlement] Subscription %d cancelled", sub.ID)
	return sub, nil
}

// subscribe creates a PENDING subscription on a locked plan, queues it and
// provisions the owner's PLAN wallet.
func subscribe(tx *gorm.DB, userID uint, plan *models.Plan) (*models.Subscription, error) {
	sub := &models.Subscription{
		UserID:   userID,
		PlanID:   plan.ID,
		Status:   models.SubscriptionStatusPending,
		JoinedAt: time.Now().UTC(),
	}
	if err := tx.Create(sub).Error; err != nil {
		return nil, err
	}
	if _, err := queue.Enqueue(tx, sub); err != nil {
		return nil, err
	}
	if _, err := ledger.GetOrCreateWallet(tx, userID, models.WalletTypePlan, &plan.ID); err != nil {
		return nil, err
	}
	return sub, nil
}

// lockSubscription locks the plan of a subscription and then the
// subscription itself, returning both as stored after the locks are held.
func lockSubscription(tx *gorm.DB, subscriptionID uint) (*models.Plan, *models.Subscription, error) {
	var peek models.Subscription
	if err := tx.Select("id", "plan_id").First(&peek, subscriptionID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, nil, apperr.NotFound("lock_subscription", "subscription", subscriptionID)
		}
		return nil, nil, err
	}

	plan, err := queue.LockPlan(tx, peek.PlanID)
	if err != nil {
		return nil, nil, err
	}

	var sub models.Subscription
	if err := tx.Clauses(database.ForUpdate).First(&sub, subscriptionID).Error; err != nil {
		return nil, nil, err
	}
	return plan, &sub, nil
}

// setStatus moves sub from one status to another and fails if someone else
// moved it first.
func setStatus(tx *gorm.DB, sub *models.Subscription, from, to string) error {
	res := tx.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", sub.ID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.InvalidState("set_status", "subscription", sub.ID, "changed concurrently", from)
	}
	sub.Status = to
	return nil
}
