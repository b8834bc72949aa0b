package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlanTypeBasic    = "BASIC"
	PlanTypeStandard = "STANDARD"
	PlanTypeUltimate = "ULTIMATE"
)

// Allowed queue quotas. A plan pays out its head after this many matched contributions.
const (
	QuotaSmall = 8
	QuotaLarge = 13
)

// Plan is a contribution tier. Plans may chain to a successor via NextPlanID
// which is used for automatic re-enrollment after a completed cycle.
type Plan struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	Name                 string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	PlanType             string          `gorm:"type:varchar(20);not null;index" json:"plan_type"`
	ContributionAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"contribution_amount"`
	MaxMembers           int             `gorm:"not null" json:"max_members"`
	DeductionRepurchase  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"deduction_repurchase"`
	DeductionMaintenance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"deduction_maintenance"`
	WithdrawableAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"withdrawable_amount"`
	NextPlanID           *uint           `gorm:"index" json:"next_plan_id,omitempty"`
	NextPlan             *Plan           `gorm:"foreignKey:NextPlanID" json:"-"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TotalDeduction is the amount withheld from the completing payment.
func (p *Plan) TotalDeduction() decimal.Decimal {
	return p.DeductionRepurchase.Add(p.DeductionMaintenance)
}

// NetPayout returns what is left of amount once the plan deductions are taken.
func (p *Plan) NetPayout(amount decimal.Decimal) decimal.Decimal {
	return amount.Sub(p.TotalDeduction())
}

// HasSuccessor reports whether completing this plan enrolls into another one
func (p *Plan) HasSuccessor() bool {
	return p.NextPlanID != nil && *p.NextPlanID != 0
}

// Validate checks the static plan invariants. Chain acyclicity needs the
// catalog and is checked there.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return errors.New("plan name is required")
	}
	switch p.PlanType {
	case PlanTypeBasic, PlanTypeStandard, PlanTypeUltimate:
	default:
		return errors.New("plan type must be one of BASIC, STANDARD, ULTIMATE")
	}
	if !ValidAmount(p.ContributionAmount) {
		return errors.New("contribution amount must be positive and in whole cents")
	}
	if p.MaxMembers != QuotaSmall && p.MaxMembers != QuotaLarge {
		return errors.New("max members must be 8 or 13")
	}
	if p.DeductionRepurchase.IsNegative() || p.DeductionMaintenance.IsNegative() || p.WithdrawableAmount.IsNegative() {
		return errors.New("deductions and withdrawable amount must not be negative")
	}
	if !IsWholeCents(p.DeductionRepurchase) || !IsWholeCents(p.DeductionMaintenance) || !IsWholeCents(p.WithdrawableAmount) {
		return errors.New("deductions and withdrawable amount must be in whole cents")
	}
	if p.TotalDeduction().GreaterThan(p.ContributionAmount) {
		return errors.New("deductions exceed contribution amount")
	}
	return nil
}
