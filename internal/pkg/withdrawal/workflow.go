// Package withdrawal runs payout requests from request through review to
// payment. Money leaves its source when the request is made; a rejection
// puts it back.
package withdrawal

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/cache"
	"github.com/ManuelReschke/Agape/internal/pkg/config"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
	"github.com/ManuelReschke/Agape/internal/pkg/ledger"
)

type Workflow struct {
	db       *gorm.DB
	cache    *cache.Store
	settings config.Settings
	ledger   *ledger.Ledger
}

func NewWorkflow(db *gorm.DB, store *cache.Store, settings config.Settings) *Workflow {
	return &Workflow{db: db, cache: store, settings: settings, ledger: ledger.New(db, store, settings)}
}

// RequestFromWallet takes amount out of a wallet and files a pending request.
func (w *Workflow) RequestFromWallet(ctx context.Context, walletID uint, amount decimal.Decimal) (*models.Withdrawal, error) {
	return w.ledger.Withdraw(ctx, walletID, amount, "")
}

// RequestFromSubscription takes amount out of the payout balance of a
// completed cycle and files a pending request.
func (w *Workflow) RequestFromSubscription(ctx context.Context, subscriptionID uint, amount decimal.Decimal) (*models.Withdrawal, error) {
	const op = "request_withdrawal"

	if !models.ValidAmount(amount) {
		return nil, apperr.New(op, apperr.ErrInvalidAmount, "subscription", subscriptionID, "amount must be positive and in whole cents")
	}

	var wd *models.Withdrawal
	err := database.RunInTx(ctx, w.db, op, func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := tx.Clauses(database.ForUpdate).First(&sub, subscriptionID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound(op, "subscription", subscriptionID)
			}
			return err
		}

		res := tx.Model(&models.Subscription{}).
			Where("id = ? AND available_for_withdrawal >= ?", sub.ID, amount).
			UpdateColumn("available_for_withdrawal", gorm.Expr("available_for_withdrawal - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(op, apperr.ErrInsufficientFunds, "subscription", sub.ID,
				fmt.Sprintf("requested %s, available %s", amount.StringFixed(2), sub.AvailableForWithdrawal.StringFixed(2)))
		}

		t, err := ledger.RecordTransaction(tx, sub.UserID, models.TransactionTypeWithdrawal, amount,
			models.TransactionStatusPending, fmt.Sprintf("Withdrawal of payout from subscription %d", sub.ID))
		if err != nil {
			return err
		}

		subID := sub.ID
		wd = &models.Withdrawal{
			UserID:         sub.UserID,
			Amount:         amount,
			Fee:            models.WithdrawalFee(amount, w.settings.WithdrawalFeeRate),
			Status:         models.WithdrawalStatusPending,
			TransactionID:  t.ID,
			SubscriptionID: &subID,
		}
		return tx.Create(wd).Error
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Withdrawal] Request %d for %s from subscription %d", wd.ID, amount.StringFixed(2), subscriptionID)
	return wd, nil
}

// Approve accepts a pending request. Its transaction is completed.
func (w *Workflow) Approve(ctx context.Context, withdrawalID uint) (*models.Withdrawal, error) {
	var wd *models.Withdrawal
	err := database.RunInTx(ctx, w.db, "approve_withdrawal", func(tx *gorm.DB) error {
		var err error
		wd, err = transition(tx, withdrawalID, models.WithdrawalStatusPending, models.WithdrawalStatusApproved)
		if err != nil {
			return err
		}
		return ledger.SettleTransaction(tx, wd.TransactionID, models.TransactionStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Withdrawal] Request %d approved, net payout %s", wd.ID, wd.NetAmount().StringFixed(2))
	return wd, nil
}

// Complete marks an approved request as paid out.
func (w *Workflow) Complete(ctx context.Context, withdrawalID uint) (*models.Withdrawal, error) {
	var wd *models.Withdrawal
	err := database.RunInTx(ctx, w.db, "complete_withdrawal", func(tx *gorm.DB) error {
		var err error
		wd, err = transition(tx, withdrawalID, models.WithdrawalStatusApproved, models.WithdrawalStatusCompleted)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Withdrawal] Request %d paid out", wd.ID)
	return wd, nil
}

// Reject refuses a pending request, fails its transaction and returns the
// amount to where it was taken from. Only the first rejection refunds.
func (w *Workflow) Reject(ctx context.Context, withdrawalID uint) (*models.Withdrawal, error) {
	const op = "reject_withdrawal"

	var wd *models.Withdrawal
	err := database.RunInTx(ctx, w.db, op, func(tx *gorm.DB) error {
		var err error
		wd, err = transition(tx, withdrawalID, models.WithdrawalStatusPending, models.WithdrawalStatusRejected)
		if err != nil {
			return err
		}
		if err := ledger.SettleTransaction(tx, wd.TransactionID, models.TransactionStatusFailed); err != nil {
			return err
		}

		switch {
		case wd.WalletID != nil:
			wallet, err := ledger.LockWallet(tx, *wd.WalletID)
			if err != nil {
				return err
			}
			desc := fmt.Sprintf("Refund of rejected withdrawal %d", wd.ID)
			_, _, err = ledger.DepositAs(tx, wallet, wd.Amount, models.TransactionTypeRefund, desc)
			return err
		case wd.SubscriptionID != nil:
			return tx.Model(&models.Subscription{}).Where("id = ?", *wd.SubscriptionID).
				UpdateColumn("available_for_withdrawal", gorm.Expr("available_for_withdrawal + ?", wd.Amount)).Error
		default:
			return apperr.New(op, apperr.ErrInvalidState, "withdrawal", wd.ID, "request has no source")
		}
	})
	if err != nil {
		return nil, err
	}

	w.cache.Invalidate(ctx, cache.WalletsKey(wd.UserID))
	log.Infof("[Withdrawal] Request %d rejected, %s returned", wd.ID, wd.Amount.StringFixed(2))
	return wd, nil
}

// Get reads one request
func (w *Workflow) Get(ctx context.Context, withdrawalID uint) (*models.Withdrawal, error) {
	var wd models.Withdrawal
	if err := w.db.WithContext(ctx).First(&wd, withdrawalID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("get_withdrawal", "withdrawal", withdrawalID)
		}
		return nil, err
	}
	return &wd, nil
}

// transition moves a request from one status to the next with a guarded
// update, so of two racing reviewers only one gets through.
func transition(tx *gorm.DB, withdrawalID uint, from, to string) (*models.Withdrawal, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{"status": to}
	if from == models.WithdrawalStatusPending {
		updates["processed_at"] = &now
	}

	res := tx.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", withdrawalID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}

	var wd models.Withdrawal
	if err := tx.First(&wd, withdrawalID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("withdrawal_transition", "withdrawal", withdrawalID)
		}
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, apperr.InvalidState("withdrawal_transition", "withdrawal", wd.ID, wd.Status, from)
	}
	return &wd, nil
}
