// Package queries is the read side of the settlement core. Plan queues,
// wallet balances and the catalog are served cache-aside; the writers drop
// the affected keys after they commit.
package queries

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/app/repository"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/cache"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
	"github.com/ManuelReschke/Agape/internal/pkg/plans"
)

// QueueSlot is one entry of a plan queue snapshot
type QueueSlot struct {
	SubscriptionID   uint `json:"subscription_id"`
	Position         int  `json:"position"`
	PaymentsReceived int  `json:"payments_received"`
}

// PlanQueue is the ordered queue of a plan
type PlanQueue struct {
	PlanID  uint        `json:"plan_id"`
	Quota   int         `json:"quota"`
	Entries []QueueSlot `json:"entries"`
}

// QueueStatus describes where a subscription stands in its plan's queue.
// Position is nil once the subscription has left the queue.
type QueueStatus struct {
	SubscriptionID   uint   `json:"subscription_id"`
	PlanID           uint   `json:"plan_id"`
	Status           string `json:"status"`
	Position         *int   `json:"position"`
	TotalInQueue     int    `json:"total_in_queue"`
	PaymentsReceived int    `json:"payments_received"`
	Quota            int    `json:"quota"`
}

type WalletBalance struct {
	WalletID   uint            `json:"wallet_id"`
	WalletType string          `json:"wallet_type"`
	PlanID     *uint           `json:"plan_id,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
}

// ContributionHistory lists what a subscription received and what it paid.
type ContributionHistory struct {
	Received []models.Contribution `json:"received"`
	Sent     []models.Contribution `json:"sent"`
}

type Service struct {
	repos   *repository.Repositories
	cache   *cache.Store
	catalog *plans.Catalog
}

func NewService(repos *repository.Repositories, store *cache.Store, catalog *plans.Catalog) *Service {
	return &Service{repos: repos, cache: store, catalog: catalog}
}

// PlanQueue returns the queue of a plan in position order.
func (s *Service) PlanQueue(ctx context.Context, planID uint) (*PlanQueue, error) {
	key := cache.PlanQueueKey(planID)

	var q PlanQueue
	if s.cache.GetJSON(ctx, key, &q) {
		return &q, nil
	}

	plan, err := s.catalog.Get(ctx, planID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repos.Queue.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	q = PlanQueue{PlanID: planID, Quota: plan.MaxMembers, Entries: make([]QueueSlot, 0, len(entries))}
	for _, e := range entries {
		q.Entries = append(q.Entries, QueueSlot{
			SubscriptionID:   e.SubscriptionID,
			Position:         e.Position,
			PaymentsReceived: e.PaymentsReceived,
		})
	}
	s.cache.SetJSON(ctx, key, q, cache.PlanQueueExpiration)
	return &q, nil
}

// QueueStatus reads the queue standing of one subscription. The position
// comes from the queue itself, not from the subscription's mirror.
func (s *Service) QueueStatus(ctx context.Context, subscriptionID uint) (*QueueStatus, error) {
	sub, err := s.repos.Subscription.GetByID(ctx, subscriptionID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("queue_status", "subscription", subscriptionID)
		}
		return nil, err
	}

	q, err := s.PlanQueue(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	status := &QueueStatus{
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		TotalInQueue:   len(q.Entries),
		Quota:          q.Quota,
	}
	for _, slot := range q.Entries {
		if slot.SubscriptionID == sub.ID {
			pos := slot.Position
			status.Position = &pos
			status.PaymentsReceived = slot.PaymentsReceived
			break
		}
	}
	return status, nil
}

// WalletBalances lists the wallets of a user.
func (s *Service) WalletBalances(ctx context.Context, userID uint) ([]WalletBalance, error) {
	key := cache.WalletsKey(userID)

	var balances []WalletBalance
	if s.cache.GetJSON(ctx, key, &balances) {
		return balances, nil
	}

	wallets, err := s.repos.Wallet.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	balances = make([]WalletBalance, 0, len(wallets))
	for _, w := range wallets {
		balances = append(balances, WalletBalance{
			WalletID:   w.ID,
			WalletType: w.WalletType,
			PlanID:     w.PlanID,
			Balance:    w.Balance,
		})
	}
	s.cache.SetJSON(ctx, key, balances, cache.WalletsExpiration)
	return balances, nil
}

// Contributions returns the contributions a subscription received and sent, newest first.
func (s *Service) Contributions(ctx context.Context, subscriptionID uint) (*ContributionHistory, error) {
	ok, err := s.repos.Subscription.Exists(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("contributions", "subscription", subscriptionID)
	}

	h := &ContributionHistory{}
	if h.Received, err = s.repos.Contribution.ListReceived(ctx, subscriptionID); err != nil {
		return nil, err
	}
	if h.Sent, err = s.repos.Contribution.ListSent(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) Plans(ctx context.Context) ([]models.Plan, error) {
	return s.catalog.List(ctx)
}

func (s *Service) Plan(ctx context.Context, planID uint) (*models.Plan, error) {
	return s.catalog.Get(ctx, planID)
}

// Subscriptions lists the subscriptions of a user, newest first.
func (s *Service) Subscriptions(ctx context.Context, userID uint) ([]models.Subscription, error) {
	return s.repos.Subscription.ListByUser(ctx, userID)
}

// Transactions lists the money movements of a user, newest first.
func (s *Service) Transactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	return s.repos.Transaction.ListByUser(ctx, userID)
}

// Withdrawals lists the payout requests of a user, newest first.
func (s *Service) Withdrawals(ctx context.Context, userID uint) ([]models.Withdrawal, error) {
	return s.repos.Withdrawal.ListByUser(ctx, userID)
}

// PendingWithdrawals is the review backlog, oldest first.
func (s *Service) PendingWithdrawals(ctx context.Context) ([]models.Withdrawal, error) {
	return s.repos.Withdrawal.ListByStatus(ctx, models.WithdrawalStatusPending)
}
