package ledger

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
)

// Ledger runs the wallet operations in their own transactions and drops
// the cached balances of the owner after each commit.
type Ledger struct {
	db       *gorm.DB
	cache    *cache.Store
	settings config.Settings
}

// New creates a ledger service
func New(db *gorm.DB, store *cache.Store, settings config.Settings) *Ledger {
	return &Ledger{db: db, cache: store, settings: settings}
}

// EnsureWallet is GetOrCreateWallet in its own transaction.
func (l *Ledger) EnsureWallet(ctx context.Context, userID uint, walletType string, planID *uint) (*models.Wallet, error) {
	var w *models.Wallet
	err := database.RunInTx(ctx, l.db, "ensure_wallet", func(tx *gorm.DB) error {
		var err error
		w, err = GetOrCreateWallet(tx, userID, walletType, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.cache.Invalidate(ctx, cache.WalletsKey(userID))
	return w, nil
}

// Deposit credits a wallet and returns its new balance.
func (l *Ledger) Deposit(ctx context.Context, walletID uint, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	var (
		balance decimal.Decimal
		userID  uint
	)
	err := database.RunInTx(ctx, l.db, "deposit", func(tx *gorm.DB) error {
		w, err := LockWallet(tx, walletID)
		if err != nil {
			return err
		}
		userID = w.UserID
		balance, err = Deposit(tx, w, amount, description)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	l.cache.Invalidate(ctx, cache.WalletsKey(userID))
	log.Infof("[Ledger] Deposited %s into wallet %d, balance %s", amount.StringFixed(2), walletID, balance.StringFixed(2))
	return balance, nil
}

// Withdraw debits a wallet and opens a pending withdrawal request. An empty
// description names the wallet type.
func (l *Ledger) Withdraw(ctx context.Context, walletID uint, amount decimal.Decimal, description string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := database.RunInTx(ctx, l.db, "withdraw", func(tx *gorm.DB) error {
		wallet, err := LockWallet(tx, walletID)
		if err != nil {
			return err
		}
		if description == "" {
			description = fmt.Sprintf("Withdrawal from %s wallet", wallet.WalletType)
		}
		w, err = Withdraw(tx, wallet, amount, description, l.settings.WithdrawalFeeRate)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.cache.Invalidate(ctx, cache.WalletsKey(w.UserID))
	log.Infof("[Ledger] Withdrawal %d of %s requested from wallet %d", w.ID, amount.StringFixed(2), walletID)
	return w, nil
}

// Wallet reads a wallet without locking it
func (l *Ledger) Wallet(ctx context.Context, walletID uint) (*models.Wallet, error) {
	var w models.Wallet
	if err := l.db.WithContext(ctx).First(&w, walletID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("get_wallet", "wallet", walletID)
		}
		return nil, err
	}
	return &w, nil
}
