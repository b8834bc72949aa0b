// Package plans is the catalog of contribution plans and their upgrade chain.
package plans

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
	"github.com/ManuelReschke/Agape/internal/pkg/cache"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
)

// Catalog creates and reads plans. Reads are served cache-aside.
type Catalog struct {
	db    *gorm.DB
	cache *cache.Store
}

func NewCatalog(db *gorm.DB, store *cache.Store) *Catalog {
	return &Catalog{db: db, cache: store}
}

// Create validates and stores a new plan. A successor, when given, must exist.
func (c *Catalog) Create(ctx context.Context, plan *models.Plan) error {
	const op = "create_plan"

	plan.ID = 0
	if err := plan.Validate(); err != nil {
		return apperr.Wrap(op, apperr.ErrInvalidArgument, err)
	}

	err := database.RunInTx(ctx, c.db, op, func(tx *gorm.DB) error {
		if plan.HasSuccessor() {
			if _, err := Load(tx, *plan.NextPlanID); err != nil {
				return err
			}
		}
		if err := tx.Omit("NextPlan").Create(plan).Error; err != nil {
			if database.IsDuplicate(err) {
				return apperr.New(op, apperr.ErrDuplicate, "", 0, "plan name "+plan.Name+" already exists")
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.cache.Invalidate(ctx, cache.KeyPlans)
	log.Infof("[Plans] Created plan %d %q (%s, quota %d)", plan.ID, plan.Name, plan.ContributionAmount.StringFixed(2), plan.MaxMembers)
	return nil
}

// Link sets or clears the successor of a plan. Links that would close a
// cycle in the chain are refused.
func (c *Catalog) Link(ctx context.Context, planID uint, nextPlanID *uint) error {
	const op = "link_plan"

	err := database.RunInTx(ctx, c.db, op, func(tx *gorm.DB) error {
		if _, err := Load(tx, planID); err != nil {
			return err
		}
		if nextPlanID != nil {
			if err := checkChain(tx, planID, *nextPlanID); err != nil {
				return err
			}
		}
		return tx.Model(&models.Plan{}).Where("id = ?", planID).Update("next_plan_id", nextPlanID).Error
	})
	if err != nil {
		return err
	}

	c.cache.Invalidate(ctx, cache.KeyPlans, cache.PlanKey(planID))
	return nil
}

// Get returns one plan.
func (c *Catalog) Get(ctx context.Context, planID uint) (*models.Plan, error) {
	var plan models.Plan
	if c.cache.GetJSON(ctx, cache.PlanKey(planID), &plan) {
		return &plan, nil
	}

	p, err := Load(c.db.WithContext(ctx), planID)
	if err != nil {
		return nil, err
	}
	c.cache.SetJSON(ctx, cache.PlanKey(planID), p, cache.PlansExpiration)
	return p, nil
}

// List returns all plans ordered by contribution amount.
func (c *Catalog) List(ctx context.Context) ([]models.Plan, error) {
	var list []models.Plan
	if c.cache.GetJSON(ctx, cache.KeyPlans, &list) {
		return list, nil
	}

	if err := c.db.WithContext(ctx).Order("contribution_amount ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	c.cache.SetJSON(ctx, cache.KeyPlans, list, cache.PlansExpiration)
	return list, nil
}

// Load reads a plan inside the caller's transaction
func Load(tx *gorm.DB, planID uint) (*models.Plan, error) {
	var plan models.Plan
	if err := tx.First(&plan, planID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("load_plan", "plan", planID)
		}
		return nil, err
	}
	return &plan, nil
}

// checkChain walks the chain starting at next and fails if it reaches planID.
func checkChain(tx *gorm.DB, planID, next uint) error {
	seen := map[uint]bool{planID: true}
	cur := next
	for {
		if seen[cur] {
			return apperr.New("link_plan", apperr.ErrInvalidArgument, "plan", planID, "successor chain would form a cycle")
		}
		seen[cur] = true

		p, err := Load(tx, cur)
		if err != nil {
			return err
		}
		if !p.HasSuccessor() {
			return nil
		}
		cur = *p.NextPlanID
	}
}
