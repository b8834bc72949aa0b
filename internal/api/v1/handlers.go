package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/settlement"
	"github.com/ManuelReschke/Agape/internal/pkg/users"
)

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// PostUser registers a user
func (s *APIServer) PostUser(c *fiber.Ctx) error {
	var in users.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	user, err := s.svc.Users.Register(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetUserWallets lists the balances of a user's wallets
func (s *APIServer) GetUserWallets(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if _, err := s.svc.Users.Get(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	balances, err := s.svc.Queries.WalletBalances(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"wallets": balances})
}

// PostUserWallet opens a wallet for a user, or returns the one it already
// has of that type (admin)
func (s *APIServer) PostUserWallet(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req walletRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if _, err := s.svc.Users.Get(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	wallet, err := s.svc.Ledger.EnsureWallet(c.UserContext(), id, req.WalletType, req.PlanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(wallet)
}

// GetUserSubscriptions lists the plan memberships of a user
func (s *APIServer) GetUserSubscriptions(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	list, err := s.svc.Queries.Subscriptions(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"subscriptions": list})
}

// GetUserReferrals lists the users registered with this user's code
func (s *APIServer) GetUserReferrals(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	list, err := s.svc.Users.Referred(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"referrals": list})
}

// GetUserTransactions lists the money movements of a user
func (s *APIServer) GetUserTransactions(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	list, err := s.svc.Queries.Transactions(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": list})
}

// GetUserWithdrawals lists the payout requests of a user
func (s *APIServer) GetUserWithdrawals(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	list, err := s.svc.Queries.Withdrawals(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"withdrawals": list})
}

func (s *APIServer) GetPlans(c *fiber.Ctx) error {
	list, err := s.svc.Queries.Plans(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"plans": list})
}

func (s *APIServer) GetPlan(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	plan, err := s.svc.Queries.Plan(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(plan)
}

// GetPlanQueue returns the ordered queue of a plan
func (s *APIServer) GetPlanQueue(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	q, err := s.svc.Queries.PlanQueue(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(q)
}

// PostPlan creates a plan (admin)
func (s *APIServer) PostPlan(c *fiber.Ctx) error {
	var req createPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	plan := req.plan()
	if err := s.svc.Catalog.Create(c.UserContext(), plan); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// PostPlanLink sets or clears the successor of a plan (admin)
func (s *APIServer) PostPlanLink(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req linkPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.svc.Catalog.Link(c.UserContext(), id, req.NextPlanID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PostSubscription enrolls a user into a plan
func (s *APIServer) PostSubscription(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	sub, err := s.svc.Settlement.CreateSubscription(c.UserContext(), req.UserID, req.PlanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// PostSubscriptionActivate confirms the entry payment (admin)
func (s *APIServer) PostSubscriptionActivate(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	sub, err := s.svc.Settlement.ActivateSubscription(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sub)
}

// PostSubscriptionCancel closes a subscription (admin)
func (s *APIServer) PostSubscriptionCancel(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	sub, err := s.svc.Settlement.CancelSubscription(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sub)
}

// PostSubscriptionReferralBonus pays the referral bonus of a subscription
// that was stored without one (admin). It answers 204 when the owner has no
// referrer and 409 when the bonus was already paid.
func (s *APIServer) PostSubscriptionReferralBonus(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ref, err := s.svc.Referral.CreateBonus(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	if ref == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

func (s *APIServer) GetSubscriptionQueue(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	status, err := s.svc.Queries.QueueStatus(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(status)
}

func (s *APIServer) GetSubscriptionContributions(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	h, err := s.svc.Queries.Contributions(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(h)
}

// PostPayment records a contribution. The Idempotency-Key header wins over
// the body field.
func (s *APIServer) PostPayment(c *fiber.Ctx) error {
	var req settlement.PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if key := c.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	contribution, err := s.svc.Settlement.ProcessPayment(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(contribution)
}

// PostWalletDeposit credits a wallet (admin)
func (s *APIServer) PostWalletDeposit(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Description == "" {
		req.Description = "Deposit"
	}
	balance, err := s.svc.Ledger.Deposit(c.UserContext(), id, req.Amount, req.Description)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(depositResponse{WalletID: id, Balance: balance})
}

// PostWithdrawal files a payout request. Amounts under the configured
// minimum are refused here; the core accepts any positive amount.
func (s *APIServer) PostWithdrawal(c *fiber.Ctx) error {
	var req withdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, "Exactly one of wallet_id and subscription_id is required")
	}
	if floor := s.svc.Settings.MinimumWithdrawal; req.Amount.LessThan(floor) {
		return badRequest(c, "Minimum withdrawal amount is "+floor.StringFixed(2))
	}

	var (
		wd  *models.Withdrawal
		err error
	)
	if req.WalletID != nil {
		wd, err = s.svc.Withdrawal.RequestFromWallet(c.UserContext(), *req.WalletID, req.Amount)
	} else {
		wd, err = s.svc.Withdrawal.RequestFromSubscription(c.UserContext(), *req.SubscriptionID, req.Amount)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(wd)
}

// GetPendingWithdrawals is the review backlog (admin)
func (s *APIServer) GetPendingWithdrawals(c *fiber.Ctx) error {
	list, err := s.svc.Queries.PendingWithdrawals(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"withdrawals": list})
}

func (s *APIServer) PostWithdrawalApprove(c *fiber.Ctx) error {
	return s.reviewWithdrawal(c, s.svc.Withdrawal.Approve)
}

func (s *APIServer) PostWithdrawalReject(c *fiber.Ctx) error {
	return s.reviewWithdrawal(c, s.svc.Withdrawal.Reject)
}

func (s *APIServer) PostWithdrawalComplete(c *fiber.Ctx) error {
	return s.reviewWithdrawal(c, s.svc.Withdrawal.Complete)
}
