package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
)

var seq atomic.Uint64

// User inserts a user, optionally referred by another one.
func User(t *testing.T, db *gorm.DB, referredBy *models.User) *models.User {
	t.Helper()

	n := seq.Add(1)
	u := &models.User{
		Email:    fmt.Sprintf("user%d@example.com", n),
		Username: fmt.Sprintf("user%d", n),
	}
	require.NoError(t, u.GenerateReferralCode())
	if referredBy != nil {
		u.ReferredByID = &referredBy.ID
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// PlanRow describes a plan row for tests. Quota is written as is, so
// scenarios may use quotas the catalog would refuse.
type PlanRow struct {
	Name        string
	Amount      string
	Quota       int
	Repurchase  string
	Maintenance string
	Next        *models.Plan
}

// Plan inserts a plan row directly.
func Plan(t *testing.T, db *gorm.DB, row PlanRow) *models.Plan {
	t.Helper()

	if row.Name == "" {
		row.Name = fmt.Sprintf("plan-%d", seq.Add(1))
	}
	if row.Amount == "" {
		row.Amount = "100"
	}
	if row.Quota == 0 {
		row.Quota = models.QuotaSmall
	}
	p := &models.Plan{
		Name:                 row.Name,
		PlanType:             models.PlanTypeBasic,
		ContributionAmount:   decimal.RequireFromString(row.Amount),
		MaxMembers:           row.Quota,
		DeductionRepurchase:  decimalOrZero(row.Repurchase),
		DeductionMaintenance: decimalOrZero(row.Maintenance),
	}
	if row.Next != nil {
		p.NextPlanID = &row.Next.ID
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Subscription inserts a subscription without queueing it.
func Subscription(t *testing.T, db *gorm.DB, user *models.User, plan *models.Plan, status string) *models.Subscription {
	t.Helper()

	s := &models.Subscription{
		UserID:   user.ID,
		PlanID:   plan.ID,
		Status:   status,
		JoinedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

// Money rounds a stored amount back to cents, dropping the float64 noise
// SQLite adds to SQL-side arithmetic. MySQL returns the exact decimal.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(models.MoneyScale)
}

// Reload reads the current row of a model by primary key.
func Reload[T any](t *testing.T, db *gorm.DB, id uint) *T {
	t.Helper()

	var v T
	require.NoError(t, db.First(&v, id).Error)
	return &v
}

func decimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}
