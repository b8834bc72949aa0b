package apiv1

import "github.com/gofiber/fiber/v2"

// RegisterHandlers mounts the v1 routes on router. Routes that move money
// on behalf of the operator sit behind admin.
func RegisterHandlers(router fiber.Router, s *APIServer, admin fiber.Handler) {
	router.Get("/ping", s.GetPing)

	router.Post("/users", s.PostUser)
	router.Get("/users/:id/wallets", s.GetUserWallets)
	router.Post("/users/:id/wallets", admin, s.PostUserWallet)
	router.Get("/users/:id/subscriptions", s.GetUserSubscriptions)
	router.Get("/users/:id/referrals", s.GetUserReferrals)
	router.Get("/users/:id/transactions", s.GetUserTransactions)
	router.Get("/users/:id/withdrawals", s.GetUserWithdrawals)

	router.Get("/plans", s.GetPlans)
	router.Get("/plans/:id", s.GetPlan)
	router.Get("/plans/:id/queue", s.GetPlanQueue)
	router.Post("/plans", admin, s.PostPlan)
	router.Post("/plans/:id/link", admin, s.PostPlanLink)

	router.Post("/subscriptions", s.PostSubscription)
	router.Post("/subscriptions/:id/activate", admin, s.PostSubscriptionActivate)
	router.Post("/subscriptions/:id/cancel", admin, s.PostSubscriptionCancel)
	router.Post("/subscriptions/:id/referral-bonus", admin, s.PostSubscriptionReferralBonus)
	router.Get("/subscriptions/:id/queue", s.GetSubscriptionQueue)
	router.Get("/subscriptions/:id/contributions", s.GetSubscriptionContributions)

	router.Post("/payments", s.PostPayment)

	router.Post("/wallets/:id/deposit", admin, s.PostWalletDeposit)

	router.Post("/withdrawals", s.PostWithdrawal)
	router.Get("/withdrawals/pending", admin, s.GetPendingWithdrawals)
	router.Post("/withdrawals/:id/approve", admin, s.PostWithdrawalApprove)
	router.Post("/withdrawals/:id/reject", admin, s.PostWithdrawalReject)
	router.Post("/withdrawals/:id/complete", admin, s.PostWithdrawalComplete)
}
