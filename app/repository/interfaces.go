package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
)

// UserRepository defines the read operations on users
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	ListReferred(ctx context.Context, referrerID uint) ([]models.User, error)
}

// SubscriptionRepository defines the read operations on subscriptions
type SubscriptionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error)
	Exists(ctx context.Context, id uint) (bool, error)
}

// QueueRepository reads plan queues. Writes go through the queue engine only.
type QueueRepository interface {
	ListByPlan(ctx context.Context, planID uint) ([]models.QueueEntry, error)
}

// ContributionRepository reads the contribution audit trail
type ContributionRepository interface {
	ListReceived(ctx context.Context, subscriptionID uint) ([]models.Contribution, error)
	ListSent(ctx context.Context, subscriptionID uint) ([]models.Contribution, error)
}

// WalletRepository reads wallet balances
type WalletRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.Wallet, error)
}

// TransactionRepository reads the money movement log
type TransactionRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.Transaction, error)
}

// WithdrawalRepository reads payout requests
type WithdrawalRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.Withdrawal, error)
	ListByStatus(ctx context.Context, status string) ([]models.Withdrawal, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	Queue        QueueRepository
	Contribution ContributionRepository
	Wallet       WalletRepository
	Transaction  TransactionRepository
	Withdrawal   WithdrawalRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Queue:        NewQueueRepository(db),
		Contribution: NewContributionRepository(db),
		Wallet:       NewWalletRepository(db),
		Transaction:  NewTransactionRepository(db),
		Withdrawal:   NewWithdrawalRepository(db),
	}
}
