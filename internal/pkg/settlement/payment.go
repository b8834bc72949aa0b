package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/cache"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
	"github.com/ManuelReschke/Agape/internal/pkg/ledger"
	"github.com/ManuelReschke/Agape/internal/pkg/queue"
)

// PaymentRequest is one contribution from one subscription into another.
// A non-empty IdempotencyKey makes the request safe to retry.
type PaymentRequest struct {
	From           uint            `json:"from_subscription_id" validate:"required"`
	To             uint            `json:"to_subscription_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=100"`
}

// Validate checks the request without touching the store
func (r PaymentRequest) Validate() error {
	const op = "process_payment"
	if !models.ValidAmount(r.Amount) {
		return apperr.New(op, apperr.ErrInvalidAmount, "", 0, "amount must be positive and in whole cents")
	}
	if r.From == 0 || r.To == 0 {
		return apperr.New(op, apperr.ErrInvalidArgument, "", 0, "both subscriptions are required")
	}
	if r.From == r.To {
		return apperr.New(op, apperr.ErrInvalidArgument, "subscription", r.From, "cannot pay itself")
	}
	return nil
}

// ProcessPayment records a contribution into the To subscription. When To
// heads its plan's queue the payment counts towards its quota; the payment
// that meets the quota pays the head out, enrolls its owner into the
// successor plan if there is one and shifts the queue.
func (e *Engine) ProcessPayment(ctx context.Context, req PaymentRequest) (*models.Contribution, error) {
	const op = "process_payment"

	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if c, err := e.replay(ctx, key, req); c != nil || err != nil {
			return c, err
		}
	}

	var (
		contribution *models.Contribution
		completed    bool
		keys         cache.Keys
	)
	err := database.RunInTx(ctx, e.db, op, func(tx *gorm.DB) error {
		plan, to, err := lockSubscription(tx, req.To)
		if err != nil {
			return err
		}
		if !to.IsActive() {
			return apperr.InvalidState(op, "subscription", to.ID, to.Status, models.SubscriptionStatusActive)
		}

		var from models.Subscription
		if err := tx.Select("id").First(&from, req.From).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound(op, "subscription", req.From)
			}
			return err
		}

		contribution = &models.Contribution{
			FromSubscriptionID: req.From,
			ToSubscriptionID:   to.ID,
			Amount:             req.Amount,
		}
		if key != "" {
			contribution.IdempotencyKey = &key
		}
		if err := tx.Create(contribution).Error; err != nil {
			if database.IsDuplicate(err) {
				return apperr.New(op, apperr.ErrDuplicate, "", 0, "idempotency key "+key+" already used")
			}
			return fmt.Errorf("%s: record contribution: %w", op, err)
		}

		err = tx.Model(&models.Subscription{}).Where("id = ?", to.ID).
			UpdateColumn("total_received", gorm.Expr("total_received + ?", req.Amount)).Error
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		entry, err := queue.LockEntry(tx, to.ID)
		if err != nil {
			return err
		}
		keys.Add(cache.PlanQueueKey(plan.ID))
		if !entry.IsHead() {
			return nil
		}

		entry.PaymentsReceived++
		err = tx.Model(&models.QueueEntry{}).Where("id = ?", entry.ID).
			UpdateColumn("payments_received", entry.PaymentsReceived).Error
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if entry.PaymentsReceived < plan.MaxMembers {
			return nil
		}

		completed = true
		return e.settle(tx, plan, to, entry, req.Amount, &keys)
	})
	if err != nil {
		if key != "" && apperr.Kind(err) == apperr.ErrDuplicate {
			// lost the race against a concurrent request with the same key
			if c, rerr := e.replay(ctx, key, req); c != nil || rerr != nil {
				return c, rerr
			}
		}
		return nil, err
	}

	e.cache.Invalidate(ctx, keys.List()...)
	if completed {
		log.Infof("[Settlement] Subscription %d met its quota and was paid out", req.To)
	}
	return contribution, nil
}

// settle pays out the head whose quota was just met. The plan deductions are
// taken from the completing payment only.
func (e *Engine) settle(tx *gorm.DB, plan *models.Plan, head *models.Subscription, entry *models.QueueEntry, amount decimal.Decimal, keys *cache.Keys) error {
	const op = "settle"

	net := plan.NetPayout(amount)
	err := tx.Model(&models.Subscription{}).Where("id = ?", head.ID).
		UpdateColumn("available_for_withdrawal", gorm.Expr("available_for_withdrawal + ?", net)).Error
	if err != nil {
		return fmt.Errorf("%s: credit payout: %w", op, err)
	}
	desc := fmt.Sprintf("Payout of %s cycle", plan.Name)
	if _, err := ledger.RecordTransaction(tx, head.UserID, models.TransactionTypeQueuePayment, net, models.TransactionStatusCompleted, desc); err != nil {
		return err
	}

	if plan.HasSuccessor() {
		next, err := queue.LockPlan(tx, *plan.NextPlanID)
		if err != nil {
			return err
		}
		upgraded, err := subscribe(tx, head.UserID, next)
		if err != nil {
			return fmt.Errorf("%s: enroll into plan %d: %w", op, next.ID, err)
		}
		keys.Add(cache.PlanQueueKey(next.ID), cache.WalletsKey(head.UserID))
		log.Infof("[Settlement] User %d moved up to plan %d as subscription %d", head.UserID, next.ID, upgraded.ID)
	}

	return queue.Shift(tx, entry)
}

// replay returns the contribution stored under key. A key reused for a
// different payment is a duplicate.
func (e *Engine) replay(ctx context.Context, key string, req PaymentRequest) (*models.Contribution, error) {
	var stored []models.Contribution
	if err := e.db.WithContext(ctx).Where("idempotency_key = ?", key).Limit(1).Find(&stored).Error; err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	c := &stored[0]
	if c.FromSubscriptionID != req.From || c.ToSubscriptionID != req.To || !c.Amount.Equal(req.Amount) {
		return nil, apperr.New("process_payment", apperr.ErrDuplicate, "", 0, "idempotency key "+key+" belongs to another payment")
	}
	log.Debugf("[Settlement] Replayed payment %s as contribution %d", key, c.ID)
	return c, nil
}
