package withdrawal_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/config"
	"github.com/ManuelReschke/Agape/internal/pkg/ledger"
	"github.com/ManuelReschke/Agape/internal/pkg/testdb"
	"github.com/ManuelReschke/Agape/internal/pkg/withdrawal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	workflow *withdrawal.Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	settings := config.Default()
	return &fixture{
		db:       db,
		ledger:   ledger.New(db, nil, settings),
		workflow: withdrawal.NewWorkflow(db, nil, settings),
	}
}

func (f *fixture) fundedWallet(t *testing.T, amount string) *models.Wallet {
	t.Helper()
	ctx := context.Background()

	w, err := f.ledger.EnsureWallet(ctx, testdb.User(t, f.db, nil).ID, models.WalletTypeFunding, nil)
	require.NoError(t, err)
	_, err = f.ledger.Deposit(ctx, w.ID, dec(amount), "funding")
	require.NoError(t, err)
	return w
}

func (f *fixture) balance(t *testing.T, walletID uint) decimal.Decimal {
	t.Helper()
	w, err := f.ledger.Wallet(context.Background(), walletID)
	require.NoError(t, err)
	return w.Balance
}

func TestWithdrawalRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, "100")

	wd, err := f.workflow.RequestFromWallet(ctx, w.ID, dec("40"))
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, wd.Status)
	assert.True(t, dec("60").Equal(f.balance(t, w.ID)))

	rejected, err := f.workflow.Reject(ctx, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.ProcessedAt)
	assert.True(t, dec("100").Equal(f.balance(t, w.ID)), f.balance(t, w.ID).String())

	tx := testdb.Reload[models.Transaction](t, f.db, wd.TransactionID)
	assert.Equal(t, models.TransactionStatusFailed, tx.Status)

	var refunds int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("transaction_type = ?", models.TransactionTypeRefund).Count(&refunds).Error)
	assert.EqualValues(t, 1, refunds)
}

func TestRejectTwiceRefundsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, "100")

	wd, err := f.workflow.RequestFromWallet(ctx, w.ID, dec("40"))
	require.NoError(t, err)
	_, err = f.workflow.Reject(ctx, wd.ID)
	require.NoError(t, err)

	_, err = f.workflow.Reject(ctx, wd.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.True(t, dec("100").Equal(f.balance(t, w.ID)))
}

func TestApproveThenComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, "100")

	wd, err := f.workflow.RequestFromWallet(ctx, w.ID, dec("50"))
	require.NoError(t, err)

	_, err = f.workflow.Complete(ctx, wd.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "only approved requests can be completed")

	approved, err := f.workflow.Approve(ctx, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, approved.Status)
	assert.True(t, dec("47.50").Equal(approved.NetAmount()), approved.NetAmount().String())
	assert.Equal(t, models.TransactionStatusCompleted, testdb.Reload[models.Transaction](t, f.db, wd.TransactionID).Status)

	_, err = f.workflow.Reject(ctx, wd.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	completed, err := f.workflow.Complete(ctx, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, completed.Status)
	assert.True(t, dec("50").Equal(f.balance(t, w.ID)))
}

func TestRequestFromWalletErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, "20")

	_, err := f.workflow.RequestFromWallet(ctx, w.ID, dec("20.01"))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, err = f.workflow.RequestFromWallet(ctx, w.ID, dec("0"))
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)

	_, err = f.workflow.RequestFromWallet(ctx, 4242, dec("1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.True(t, dec("20").Equal(f.balance(t, w.ID)))
}

func TestSubscriptionPayoutWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := testdb.Plan(t, f.db, testdb.PlanRow{})
	sub := testdb.Subscription(t, f.db, testdb.User(t, f.db, nil), plan, models.SubscriptionStatusCompleted)
	require.NoError(t, f.db.Model(sub).UpdateColumn("available_for_withdrawal", dec("85")).Error)

	_, err := f.workflow.RequestFromSubscription(ctx, sub.ID, dec("90"))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	wd, err := f.workflow.RequestFromSubscription(ctx, sub.ID, dec("85"))
	require.NoError(t, err)
	require.NotNil(t, wd.SubscriptionID)
	assert.Nil(t, wd.WalletID)
	assert.True(t, testdb.Reload[models.Subscription](t, f.db, sub.ID).AvailableForWithdrawal.IsZero())

	_, err = f.workflow.Reject(ctx, wd.ID)
	require.NoError(t, err)
	restored := testdb.Reload[models.Subscription](t, f.db, sub.ID).AvailableForWithdrawal
	assert.True(t, dec("85").Equal(restored), restored.String())
}

func TestUnknownWithdrawal(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.Approve(context.Background(), 31)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.workflow.Get(context.Background(), 31)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRequestsRejectFractionsOfACent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, "30")

	_, err := f.workflow.RequestFromWallet(ctx, w.ID, dec("25.005"))
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
	assert.True(t, dec("30").Equal(f.balance(t, w.ID)))

	plan := testdb.Plan(t, f.db, testdb.PlanRow{})
	sub := testdb.Subscription(t, f.db, testdb.User(t, f.db, nil), plan, models.SubscriptionStatusCompleted)
	require.NoError(t, f.db.Model(sub).UpdateColumn("available_for_withdrawal", dec("85")).Error)

	_, err = f.workflow.RequestFromSubscription(ctx, sub.ID, dec("84.999"))
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
	restored := testdb.Reload[models.Subscription](t, f.db, sub.ID).AvailableForWithdrawal
	assert.True(t, dec("85").Equal(restored), restored.String())
}
