package settlement_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/config"
	"github.com/ManuelReschke/Agape/internal/pkg/queue"
	"github.com/ManuelReschke/Agape/internal/pkg/settlement"
	"github.com/ManuelReschke/Agape/internal/pkg/testdb"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	db     *gorm.DB
	engine *settlement.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	return &fixture{db: db, engine: settlement.NewEngine(db, nil, config.Default())}
}

// join subscribes n fresh users to plan in order and returns the subscriptions.
func (f *fixture) join(t *testing.T, plan *models.Plan, n int) []*models.Subscription {
	t.Helper()

	subs := make([]*models.Subscription, 0, n)
	for i := 0; i < n; i++ {
		sub, err := f.engine.CreateSubscription(context.Background(), testdb.User(t, f.db, nil).ID, plan.ID)
		require.NoError(t, err)
		subs = append(subs, sub)
	}
	return subs
}

func (f *fixture) activate(t *testing.T, sub *models.Subscription) {
	t.Helper()
	_, err := f.engine.ActivateSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
}

func (f *fixture) pay(from, to *models.Subscription, amount string) (*models.Contribution, error) {
	return f.engine.ProcessPayment(context.Background(), settlement.PaymentRequest{
		From:   from.ID,
		To:     to.ID,
		Amount: dec(amount),
	})
}

func TestCreateSubscriptionQueuesAndProvisions(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{})

	subs := f.join(t, plan, 2)

	assert.Equal(t, models.SubscriptionStatusPending, subs[0].Status)
	assert.Equal(t, 1, *subs[0].QueuePosition)
	assert.Equal(t, 2, *subs[1].QueuePosition)

	var wallet models.Wallet
	err := f.db.Where("user_id = ? AND wallet_type = ? AND plan_id = ?", subs[0].UserID, models.WalletTypePlan, plan.ID).First(&wallet).Error
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestCreateSubscriptionPaysReferrer(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{Amount: "100"})
	referrer := testdb.User(t, f.db, nil)
	user := testdb.User(t, f.db, referrer)

	_, err := f.engine.CreateSubscription(context.Background(), user.ID, plan.ID)
	require.NoError(t, err)

	var wallet models.Wallet
	require.NoError(t, f.db.Where("user_id = ? AND wallet_type = ?", referrer.ID, models.WalletTypeReferral).First(&wallet).Error)
	assert.True(t, dec("5").Equal(testdb.Money(wallet.Balance)), wallet.Balance.String())
}

func TestCreateSubscriptionUnknownUserOrPlan(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{})
	user := testdb.User(t, f.db, nil)
	ctx := context.Background()

	_, err := f.engine.CreateSubscription(ctx, 999, plan.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.engine.CreateSubscription(ctx, user.ID, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var n int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestActivateSubscription(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{Amount: "250"})
	sub := f.join(t, plan, 1)[0]
	ctx := context.Background()

	activated, err := f.engine.ActivateSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, activated.Status)

	var payment models.Transaction
	require.NoError(t, f.db.Where("user_id = ? AND transaction_type = ?", sub.UserID, models.TransactionTypeSubscriptionPayment).First(&payment).Error)
	assert.True(t, dec("250").Equal(payment.Amount))
	assert.Equal(t, models.TransactionStatusCompleted, payment.Status)

	_, err = f.engine.ActivateSubscription(ctx, sub.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCancelSubscriptionCompactsQueue(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{})
	subs := f.join(t, plan, 3)
	ctx := context.Background()

	cancelled, err := f.engine.CancelSubscription(ctx, subs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.QueuePosition)

	head, err := queue.Head(f.db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, subs[1].ID, head.SubscriptionID)

	positions, err := queue.Positions(f.db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions)

	_, err = f.engine.CancelSubscription(ctx, subs[0].ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestBasicCycle(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{Amount: "100", Quota: 3, Repurchase: "10", Maintenance: "5"})
	subs := f.join(t, plan, 4)
	a, b, c, d := subs[0], subs[1], subs[2], subs[3]
	f.activate(t, a)

	for _, from := range []*models.Subscription{b, c, d} {
		_, err := f.pay(from, a, "100")
		require.NoError(t, err)
	}

	a = testdb.Reload[models.Subscription](t, f.db, a.ID)
	assert.Equal(t, models.SubscriptionStatusCompleted, a.Status)
	assert.NotNil(t, a.CompletedAt)
	assert.True(t, dec("85").Equal(testdb.Money(a.AvailableForWithdrawal)), a.AvailableForWithdrawal.String())
	assert.True(t, dec("300").Equal(testdb.Money(a.TotalReceived)), a.TotalReceived.String())

	head, err := queue.Head(f.db, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, b.ID, head.SubscriptionID)

	size, err := queue.Size(f.db, plan.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)

	var payout models.Transaction
	require.NoError(t, f.db.Where("user_id = ? AND transaction_type = ?", a.UserID, models.TransactionTypeQueuePayment).First(&payout).Error)
	assert.True(t, dec("85").Equal(payout.Amount))

	var contributions int64
	require.NoError(t, f.db.Model(&models.Contribution{}).Where("to_subscription_id = ?", a.ID).Count(&contributions).Error)
	assert.EqualValues(t, 3, contributions)
}

func TestAutoUpgradeEnrollsIntoSuccessor(t *testing.T) {
	f := newFixture(t)
	q := testdb.Plan(t, f.db, testdb.PlanRow{Amount: "500", Quota: 3})
	p := testdb.Plan(t, f.db, testdb.PlanRow{Amount: "100", Quota: 3, Repurchase: "10", Maintenance: "5", Next: q})

	waiting := f.join(t, q, 2)
	subs := f.join(t, p, 4)
	a := subs[0]
	f.activate(t, a)

	for _, from := range subs[1:] {
		_, err := f.pay(from, a, "100")
		require.NoError(t, err)
	}

	var upgraded models.Subscription
	require.NoError(t, f.db.Where("user_id = ? AND plan_id = ?", a.UserID, q.ID).First(&upgraded).Error)
	assert.Equal(t, models.SubscriptionStatusPending, upgraded.Status)
	require.NotNil(t, upgraded.QueuePosition)
	assert.Equal(t, len(waiting)+1, *upgraded.QueuePosition)

	var wallets int64
	require.NoError(t, f.db.Model(&models.Wallet{}).Where("user_id = ? AND plan_id = ?", a.UserID, q.ID).Count(&wallets).Error)
	assert.EqualValues(t, 1, wallets)

	positions, err := queue.Positions(f.db, q.ID)
	require.NoError(t, err)
	assert.True(t, queue.Contiguous(positions))
	assert.Len(t, positions, 3)
}

func TestPaymentToNonHeadOnlyRecords(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{Quota: 3})
	subs := f.join(t, plan, 3)
	f.activate(t, subs[1])

	_, err := f.pay(subs[2], subs[1], "100")
	require.NoError(t, err)

	second := testdb.Reload[models.Subscription](t, f.db, subs[1].ID)
	assert.True(t, dec("100").Equal(testdb.Money(second.TotalReceived)))

	var entry models.QueueEntry
	require.NoError(t, f.db.Where("subscription_id = ?", subs[1].ID).First(&entry).Error)
	assert.Zero(t, entry.PaymentsReceived)
	assert.Equal(t, 2, entry.Position)
}

func TestPaymentErrors(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{})
	subs := f.join(t, plan, 2)
	unqueued := testdb.Subscription(t, f.db, testdb.User(t, f.db, nil), plan, models.SubscriptionStatusActive)

	tests := []struct {
		name     string
		from, to uint
		amount   string
		want     error
	}{
		{"zero amount", subs[1].ID, subs[0].ID, "0", apperr.ErrInvalidAmount},
		{"negative amount", subs[1].ID, subs[0].ID, "-1", apperr.ErrInvalidAmount},
		{"fraction of a cent", subs[1].ID, subs[0].ID, "99.995", apperr.ErrInvalidAmount},
		{"self payment", subs[0].ID, subs[0].ID, "100", apperr.ErrInvalidArgument},
		{"pending target", subs[1].ID, subs[0].ID, "100", apperr.ErrInvalidState},
		{"unknown target", subs[1].ID, 9999, "100", apperr.ErrNotFound},
		{"unknown sender", 9999, unqueued.ID, "100", apperr.ErrNotFound},
		{"target not queued", subs[1].ID, unqueued.ID, "100", apperr.ErrNotQueued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ProcessPayment(context.Background(), settlement.PaymentRequest{
				From: tt.from, To: tt.to, Amount: dec(tt.amount),
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Contribution{}).Count(&n).Error)
	assert.Zero(t, n, "failed payments leave no contribution behind")
}

func TestPaymentToCompletedSubscriptionFails(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{Quota: 1})
	subs := f.join(t, plan, 2)
	f.activate(t, subs[0])

	_, err := f.pay(subs[1], subs[0], "100")
	require.NoError(t, err)

	_, err = f.pay(subs[1], subs[0], "100")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{Quota: 3})
	subs := f.join(t, plan, 2)
	f.activate(t, subs[0])
	ctx := context.Background()

	req := settlement.PaymentRequest{From: subs[1].ID, To: subs[0].ID, Amount: dec("100"), IdempotencyKey: "pay-1"}
	first, err := f.engine.ProcessPayment(ctx, req)
	require.NoError(t, err)
	again, err := f.engine.ProcessPayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	var entry models.QueueEntry
	require.NoError(t, f.db.Where("subscription_id = ?", subs[0].ID).First(&entry).Error)
	assert.Equal(t, 1, entry.PaymentsReceived)
	assert.True(t, dec("100").Equal(testdb.Money(testdb.Reload[models.Subscription](t, f.db, subs[0].ID).TotalReceived)))

	req.Amount = dec("50")
	_, err = f.engine.ProcessPayment(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
}

func TestConcurrentHeadPaymentsCompleteOnce(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{Amount: "100", Quota: 3})
	subs := f.join(t, plan, 7)
	head := subs[0]
	f.activate(t, head)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i, from := range subs[1:] {
		wg.Add(1)
		go func(i int, from *models.Subscription) {
			defer wg.Done()
			_, err := f.engine.ProcessPayment(context.Background(), settlement.PaymentRequest{
				From:           from.ID,
				To:             head.ID,
				Amount:         dec("100"),
				IdempotencyKey: fmt.Sprintf("concurrent-%d", i),
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i, from)
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)

	var payouts int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("user_id = ? AND transaction_type = ?", head.UserID, models.TransactionTypeQueuePayment).
		Count(&payouts).Error)
	assert.EqualValues(t, 1, payouts)

	positions, err := queue.Positions(f.db, plan.ID)
	require.NoError(t, err)
	assert.Len(t, positions, 6)
	assert.True(t, queue.Contiguous(positions))
}

func TestConcurrentSubscriptionsQueueContiguously(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{})

	const n = 8
	userIDs := make([]uint, n)
	for i := range userIDs {
		userIDs[i] = testdb.User(t, f.db, nil).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			_, errs[i] = f.engine.CreateSubscription(context.Background(), userID, plan.ID)
		}(i, userID)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "join %d", i)
	}

	positions, err := queue.Positions(f.db, plan.ID)
	require.NoError(t, err)
	assert.Len(t, positions, n)
	assert.True(t, queue.Contiguous(positions))

	var mirrors []int
	require.NoError(t, f.db.Model(&models.Subscription{}).
		Where("plan_id = ?", plan.ID).
		Order("queue_position ASC").
		Pluck("queue_position", &mirrors).Error)
	assert.Equal(t, positions, mirrors)
}

func TestConcurrentJoinsWhileHeadShifts(t *testing.T) {
	f := newFixture(t)
	plan := testdb.Plan(t, f.db, testdb.PlanRow{Amount: "100", Quota: 1})
	subs := f.join(t, plan, 2)
	f.activate(t, subs[0])

	const joins = 5
	userIDs := make([]uint, joins)
	for i := range userIDs {
		userIDs[i] = testdb.User(t, f.db, nil).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, joins+1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[joins] = f.pay(subs[1], subs[0], "100")
	}()
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			_, errs[i] = f.engine.CreateSubscription(context.Background(), userID, plan.ID)
		}(i, userID)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "operation %d", i)
	}

	assert.Equal(t, models.SubscriptionStatusCompleted, testdb.Reload[models.Subscription](t, f.db, subs[0].ID).Status)
	positions, err := queue.Positions(f.db, plan.ID)
	require.NoError(t, err)
	assert.Len(t, positions, 1+joins)
	assert.True(t, queue.Contiguous(positions))
	assert.Equal(t, 1, entryPosition(t, f.db, subs[1].ID))
}

func entryPosition(t *testing.T, db *gorm.DB, subID uint) int {
	t.Helper()
	var e models.QueueEntry
	require.NoError(t, db.Where("subscription_id = ?", subID).First(&e).Error)
	return e.Position
}
