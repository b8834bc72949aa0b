package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
)

// Deposit credits amount to the wallet and logs a COMPLETED DEPOSIT transaction.
// It returns the new balance.
func Deposit(tx *gorm.DB, wallet *models.Wallet, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	balance, _, err := DepositAs(tx, wallet, amount, models.TransactionTypeDeposit, description)
	return balance, err
}

// DepositAs is Deposit with an explicit transaction type (referral bonus, refund).
func DepositAs(tx *gorm.DB, wallet *models.Wallet, amount decimal.Decimal, txType, description string) (decimal.Decimal, *models.Transaction, error) {
	const op = "deposit"

	if !models.ValidAmount(amount) {
		return decimal.Zero, nil, apperr.New(op, apperr.ErrInvalidAmount, "wallet", wallet.ID, "amount must be positive and in whole cents")
	}

	// relative update; concurrent deposits never overwrite each other
	res := tx.Model(&models.Wallet{}).Where("id = ?", wallet.ID).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return decimal.Zero, nil, fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, nil, apperr.NotFound(op, "wallet", wallet.ID)
	}

	t, err := RecordTransaction(tx, wallet.UserID, txType, amount, models.TransactionStatusCompleted, description)
	if err != nil {
		return decimal.Zero, nil, err
	}

	if err := refreshBalance(tx, wallet); err != nil {
		return decimal.Zero, nil, err
	}
	return wallet.Balance, t, nil
}

// Withdraw debits amount from the wallet and opens a PENDING withdrawal
// request backed by a PENDING WITHDRAWAL transaction. The balance never goes
// negative: the debit only applies while balance >= amount.
func Withdraw(tx *gorm.DB, wallet *models.Wallet, amount decimal.Decimal, description string, feeRate decimal.Decimal) (*models.Withdrawal, error) {
	const op = "withdraw"

	if !models.ValidAmount(amount) {
		return nil, apperr.New(op, apperr.ErrInvalidAmount, "wallet", wallet.ID, "amount must be positive and in whole cents")
	}

	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", wallet.ID, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		if err := refreshBalance(tx, wallet); err != nil {
			return nil, err
		}
		return nil, apperr.New(op, apperr.ErrInsufficientFunds, "wallet", wallet.ID,
			fmt.Sprintf("requested %s, balance %s", amount.StringFixed(2), wallet.Balance.StringFixed(2)))
	}

	t, err := RecordTransaction(tx, wallet.UserID, models.TransactionTypeWithdrawal, amount, models.TransactionStatusPending, description)
	if err != nil {
		return nil, err
	}

	walletID := wallet.ID
	w := &models.Withdrawal{
		UserID:        wallet.UserID,
		Amount:        amount,
		Fee:           models.WithdrawalFee(amount, feeRate),
		Status:        models.WithdrawalStatusPending,
		TransactionID: t.ID,
		WalletID:      &walletID,
	}
	if err := tx.Create(w).Error; err != nil {
		return nil, fmt.Errorf("%s: create withdrawal: %w", op, err)
	}

	if err := refreshBalance(tx, wallet); err != nil {
		return nil, err
	}
	return w, nil
}

func refreshBalance(tx *gorm.DB, wallet *models.Wallet) error {
	var stored models.Wallet
	if err := tx.Select("id", "balance").First(&stored, wallet.ID).Error; err != nil {
		return fmt.Errorf("reload wallet %d: %w", wallet.ID, err)
	}
	wallet.Balance = stored.Balance
	return nil
}
