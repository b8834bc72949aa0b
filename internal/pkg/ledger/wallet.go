// Package ledger owns wallet balances. Every balance change goes through
// Deposit or Withdraw and appends a Transaction in the same database transaction.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
)

// GetOrCreateWallet returns the wallet for (user, type, plan), creating an
// empty one on first use. PLAN wallets need a plan; the others must not have one.
func GetOrCreateWallet(tx *gorm.DB, userID uint, walletType string, planID *uint) (*models.Wallet, error) {
	const op = "get_or_create_wallet"

	if userID == 0 {
		return nil, apperr.New(op, apperr.ErrInvalidArgument, "", 0, "user is required")
	}
	if !models.IsValidWalletType(walletType) {
		return nil, apperr.New(op, apperr.ErrInvalidArgument, "", 0, "unknown wallet type "+walletType)
	}
	hasPlan := planID != nil && *planID != 0
	if walletType == models.WalletTypePlan && !hasPlan {
		return nil, apperr.New(op, apperr.ErrInvalidArgument, "", 0, "plan is required for a PLAN wallet")
	}
	if walletType != models.WalletTypePlan && hasPlan {
		return nil, apperr.New(op, apperr.ErrInvalidArgument, "", 0, "only PLAN wallets belong to a plan")
	}

	w := models.Wallet{
		UserID:     userID,
		WalletType: walletType,
		Balance:    decimal.Zero,
	}
	if hasPlan {
		w.PlanID = planID
		w.PlanKey = *planID
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&w).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var stored models.Wallet
	err := tx.Where("user_id = ? AND wallet_type = ? AND plan_key = ?", userID, walletType, w.PlanKey).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &stored, nil
}

// LockWallet reads a wallet and holds its row lock until the transaction ends.
func LockWallet(tx *gorm.DB, walletID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := tx.Clauses(database.ForUpdate).First(&w, walletID).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("lock_wallet", "wallet", walletID)
		}
		return nil, err
	}
	return &w, nil
}

// NewExternalID returns a unique transaction reference like "DEP-3f2c...".
func NewExternalID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// RecordTransaction appends a row to the money movement log.
func RecordTransaction(tx *gorm.DB, userID uint, txType string, amount decimal.Decimal, status, description string) (*models.Transaction, error) {
	t := &models.Transaction{
		UserID:          userID,
		TransactionType: txType,
		Amount:          amount,
		Status:          status,
		ExternalID:      NewExternalID(externalPrefix(txType)),
		Description:     description,
	}
	if status == models.TransactionStatusCompleted {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, fmt.Errorf("record %s transaction: %w", txType, err)
	}
	return t, nil
}

// SettleTransaction moves a PENDING transaction to a final status.
func SettleTransaction(tx *gorm.DB, transactionID uint, status string) error {
	now := time.Now().UTC()
	res := tx.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", transactionID, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New("settle_transaction", apperr.ErrInvalidState, "transaction", transactionID, "transaction is not pending")
	}
	return nil
}

func externalPrefix(txType string) string {
	switch txType {
	case models.TransactionTypeDeposit:
		return "DEP"
	case models.TransactionTypeWithdrawal:
		return "WD"
	case models.TransactionTypeReferralBonus:
		return "REF"
	case models.TransactionTypeSubscriptionPayment:
		return "PAY"
	case models.TransactionTypeQueuePayment:
		return "QP"
	case models.TransactionTypeRefund:
		return "RFD"
	default:
		return "TX"
	}
}
