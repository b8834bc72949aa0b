// Package referral pays the one-time bonus a referrer earns when a referred
// user subscribes to a plan.
package referral

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/cache"
	"github.com/ManuelReschke/Agape/internal/pkg/config"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
	"github.com/ManuelReschke/Agape/internal/pkg/ledger"
	"github.com/ManuelReschke/Agape/internal/pkg/plans"
)

// CreateBonus credits the referrer of sub's owner with rate times the plan
// contribution. It returns nil when the owner has no referrer. The Referral
// row is written before any money moves so a second call for the same
// subscription fails with ErrDuplicate and credits nothing.
func CreateBonus(tx *gorm.DB, sub *models.Subscription, rate decimal.Decimal) (*models.Referral, error) {
	const op = "referral_bonus"

	var user models.User
	if err := tx.First(&user, sub.UserID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound(op, "user", sub.UserID)
		}
		return nil, err
	}
	if !user.HasReferrer() {
		return nil, nil
	}

	plan, err := plans.Load(tx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	bonus := models.ReferralBonus(plan.ContributionAmount, rate)
	if !bonus.IsPositive() {
		log.Debugf("[Referral] No bonus for subscription %d at rate %s", sub.ID, rate.String())
		return nil, nil
	}

	ref := &models.Referral{
		ReferrerID:     *user.ReferredByID,
		ReferredUserID: user.ID,
		SubscriptionID: sub.ID,
		BonusAmount:    bonus,
	}
	if err := tx.Create(ref).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, apperr.New(op, apperr.ErrDuplicate, "subscription", sub.ID, "referral bonus already paid")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	wallet, err := ledger.GetOrCreateWallet(tx, ref.ReferrerID, models.WalletTypeReferral, nil)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Referral bonus for %s joining %s", user.Username, plan.Name)
	if _, _, err := ledger.DepositAs(tx, wallet, bonus, models.TransactionTypeReferralBonus, desc); err != nil {
		return nil, err
	}
	return ref, nil
}

// Engine runs CreateBonus for collaborators that trigger it outside of
// subscription creation.
type Engine struct {
	db       *gorm.DB
	cache    *cache.Store
	settings config.Settings
}

func NewEngine(db *gorm.DB, store *cache.Store, settings config.Settings) *Engine {
	return &Engine{db: db, cache: store, settings: settings}
}

// CreateBonus pays the referral bonus for a stored subscription.
func (e *Engine) CreateBonus(ctx context.Context, subscriptionID uint) (*models.Referral, error) {
	var ref *models.Referral
	err := database.RunInTx(ctx, e.db, "referral_bonus", func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := tx.First(&sub, subscriptionID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound("referral_bonus", "subscription", subscriptionID)
			}
			return err
		}
		var err error
		ref, err = CreateBonus(tx, &sub, e.settings.ReferralBonusRate)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ref != nil {
		e.cache.Invalidate(ctx, cache.WalletsKey(ref.ReferrerID))
		log.Infof("[Referral] Paid %s to user %d for subscription %d", ref.BonusAmount.StringFixed(2), ref.ReferrerID, subscriptionID)
	}
	return ref, nil
}
