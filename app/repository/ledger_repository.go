package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
)

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

// ListByUser returns the wallets of a user ordered by type, plan wallets by plan
func (r *walletRepository) ListByUser(ctx context.Context, userID uint) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("wallet_type ASC, plan_key ASC").
		Find(&wallets).Error
	return wallets, err
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// ListByUser returns the transactions of a user, newest first
func (r *transactionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&list).Error
	return list, err
}

type withdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

// ListByUser returns the payout requests of a user, newest first
func (r *withdrawalRepository) ListByUser(ctx context.Context, userID uint) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&list).Error
	return list, err
}

// ListByStatus returns requests in a status, oldest first
func (r *withdrawalRepository) ListByStatus(ctx context.Context, status string) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&list).Error
	return list, err
}
