package apiv1

import (
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/Agape/app/models"
)

type createPlanRequest struct {
	Name                 string          `json:"name" validate:"required,max=100"`
	PlanType             string          `json:"plan_type" validate:"required,oneof=BASIC STANDARD ULTIMATE"`
	ContributionAmount   decimal.Decimal `json:"contribution_amount"`
	MaxMembers           int             `json:"max_members" validate:"required"`
	DeductionRepurchase  decimal.Decimal `json:"deduction_repurchase"`
	DeductionMaintenance decimal.Decimal `json:"deduction_maintenance"`
	WithdrawableAmount   decimal.Decimal `json:"withdrawable_amount"`
	NextPlanID           *uint           `json:"next_plan_id"`
}

func (r createPlanRequest) plan() *models.Plan {
	return &models.Plan{
		Name:                 r.Name,
		PlanType:             r.PlanType,
		ContributionAmount:   r.ContributionAmount,
		MaxMembers:           r.MaxMembers,
		DeductionRepurchase:  r.DeductionRepurchase,
		DeductionMaintenance: r.DeductionMaintenance,
		WithdrawableAmount:   r.WithdrawableAmount,
		NextPlanID:           r.NextPlanID,
	}
}

type linkPlanRequest struct {
	NextPlanID *uint `json:"next_plan_id"`
}

type subscribeRequest struct {
	UserID uint `json:"user_id" validate:"required"`
	PlanID uint `json:"plan_id" validate:"required"`
}

type walletRequest struct {
	WalletType string `json:"wallet_type" validate:"required,oneof=PLAN FUNDING REFERRAL"`
	PlanID     *uint  `json:"plan_id"`
}

type depositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

// withdrawalRequest names exactly one source: a wallet or the payout
// balance of a subscription.
type withdrawalRequest struct {
	WalletID       *uint           `json:"wallet_id" validate:"required_without=SubscriptionID,excluded_with=SubscriptionID"`
	SubscriptionID *uint           `json:"subscription_id" validate:"required_without=WalletID"`
	Amount         decimal.Decimal `json:"amount"`
}

type depositResponse struct {
	WalletID uint            `json:"wallet_id"`
	Balance  decimal.Decimal `json:"balance"`
}
