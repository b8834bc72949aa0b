package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/queue"
	"github.com/ManuelReschke/Agape/internal/pkg/testdb"
)

func enqueueN(t *testing.T, db *gorm.DB, plan *models.Plan, n int) []*models.Subscription {
	t.Helper()

	subs := make([]*models.Subscription, 0, n)
	for i := 0; i < n; i++ {
		sub := testdb.Subscription(t, db, testdb.User(t, db, nil), plan, models.SubscriptionStatusActive)
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := queue.Enqueue(tx, sub)
			return err
		})
		require.NoError(t, err)
		subs = append(subs, sub)
	}
	return subs
}

func entryOf(t *testing.T, db *gorm.DB, subID uint) *models.QueueEntry {
	t.Helper()

	var e models.QueueEntry
	require.NoError(t, db.Where("subscription_id = ?", subID).First(&e).Error)
	return &e
}

func TestEnqueueAppendsAtTail(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})

	subs := enqueueN(t, db, plan, 3)

	for i, sub := range subs {
		assert.Equal(t, i+1, entryOf(t, db, sub.ID).Position)
		reloaded := testdb.Reload[models.Subscription](t, db, sub.ID)
		require.NotNil(t, reloaded.QueuePosition)
		assert.Equal(t, i+1, *reloaded.QueuePosition)
	}

	positions, err := queue.Positions(db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, positions)
}

func TestEnqueueTwiceIsDuplicate(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})
	sub := enqueueN(t, db, plan, 1)[0]

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := queue.Enqueue(tx, sub)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
}

func TestEnqueueRejectsClosedSubscription(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})
	sub := testdb.Subscription(t, db, testdb.User(t, db, nil), plan, models.SubscriptionStatusCompleted)

	_, err := queue.Enqueue(db, sub)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestQueuesArePerPlan(t *testing.T) {
	db := testdb.New(t)
	p1 := testdb.Plan(t, db, testdb.PlanRow{})
	p2 := testdb.Plan(t, db, testdb.PlanRow{})

	enqueueN(t, db, p1, 2)
	other := enqueueN(t, db, p2, 1)

	assert.Equal(t, 1, entryOf(t, db, other[0].ID).Position)
}

func TestShiftCompletesHeadAndMovesQueueUp(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})
	subs := enqueueN(t, db, plan, 4)

	head := entryOf(t, db, subs[0].ID)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return queue.Shift(tx, head)
	}))

	completed := testdb.Reload[models.Subscription](t, db, subs[0].ID)
	assert.Equal(t, models.SubscriptionStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Nil(t, completed.QueuePosition)

	for i, sub := range subs[1:] {
		assert.Equal(t, i+1, entryOf(t, db, sub.ID).Position)
		assert.Equal(t, i+1, *testdb.Reload[models.Subscription](t, db, sub.ID).QueuePosition)
	}

	next, err := queue.Head(db, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, subs[1].ID, next.SubscriptionID)
}

func TestShiftRequiresHead(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})
	subs := enqueueN(t, db, plan, 2)

	err := queue.Shift(db, entryOf(t, db, subs[1].ID))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	positions, err := queue.Positions(db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions)
}

func TestRemoveFromMiddleCompacts(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})
	subs := enqueueN(t, db, plan, 5)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return queue.Remove(tx, entryOf(t, tx, subs[2].ID))
	}))

	assert.Nil(t, testdb.Reload[models.Subscription](t, db, subs[2].ID).QueuePosition)
	assert.Equal(t, 2, entryOf(t, db, subs[1].ID).Position)
	assert.Equal(t, 3, entryOf(t, db, subs[3].ID).Position)
	assert.Equal(t, 4, entryOf(t, db, subs[4].ID).Position)
}

func TestContiguityAfterMixedOperations(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})
	subs := enqueueN(t, db, plan, 6)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := queue.Shift(tx, entryOf(t, tx, subs[0].ID)); err != nil {
			return err
		}
		if err := queue.Remove(tx, entryOf(t, tx, subs[5].ID)); err != nil {
			return err
		}
		return queue.Remove(tx, entryOf(t, tx, subs[2].ID))
	}))
	enqueueN(t, db, plan, 2)

	positions, err := queue.Positions(db, plan.ID)
	require.NoError(t, err)
	assert.Len(t, positions, 5)
	assert.True(t, queue.Contiguous(positions))

	size, err := queue.Size(db, plan.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
}

func TestHeadOfEmptyQueue(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})

	head, err := queue.Head(db, plan.ID)
	require.NoError(t, err)
	assert.Nil(t, head)
}

func TestLockEntryNotQueued(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})
	sub := testdb.Subscription(t, db, testdb.User(t, db, nil), plan, models.SubscriptionStatusActive)

	_, err := queue.LockEntry(db, sub.ID)
	assert.ErrorIs(t, err, apperr.ErrNotQueued)
}

func TestLockPlanMissing(t *testing.T) {
	db := testdb.New(t)

	_, err := queue.LockPlan(db, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestContiguous(t *testing.T) {
	tests := []struct {
		name      string
		positions []int
		want      bool
	}{
		{"empty", nil, true},
		{"ordered", []int{1, 2, 3}, true},
		{"unordered", []int{3, 1, 2}, true},
		{"gap", []int{1, 3}, false},
		{"duplicate", []int{1, 1, 2}, false},
		{"starts at zero", []int{0, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queue.Contiguous(tt.positions))
		})
	}
}

func TestTailFollowsQueueChanges(t *testing.T) {
	db := testdb.New(t)
	plan := testdb.Plan(t, db, testdb.PlanRow{})

	tail, err := queue.Tail(db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tail)

	subs := enqueueN(t, db, plan, 3)
	tail, err = queue.Tail(db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, tail)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return queue.Shift(tx, entryOf(t, tx, subs[0].ID))
	}))
	tail, err = queue.Tail(db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, tail)
}

// On InnoDB a plain read inside a transaction sees the snapshot taken before
// the plan lock was granted. The tail must be read with a locking read.
func TestTailIsLockingReadOnMySQL(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "agape:agape@tcp(127.0.0.1:3306)/agape?parseTime=True",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var statements []string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("capture_sql", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}))

	_, err = queue.Tail(db, 7)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Contains(t, statements[0], "ORDER BY position DESC")
	assert.Contains(t, statements[0], "FOR UPDATE")
}
