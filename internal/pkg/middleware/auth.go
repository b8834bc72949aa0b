package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/ManuelReschke/Agape/internal/pkg/env"
)

// RequireAdmin guards operator routes with HTTP basic auth. Credentials come
// from ADMIN_USER and ADMIN_PASSWORD; without a password every request is refused.
func RequireAdmin() fiber.Handler {
	user := env.GetEnv("ADMIN_USER", "admin")
	password := env.GetEnv("ADMIN_PASSWORD", "")
	if password == "" {
		log.Warn("[Middleware] ADMIN_PASSWORD is not set, admin routes are disabled")
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "admin access is not configured",
			})
		}
	}
	return Admin(user, password)
}

// Admin returns a basic auth guard for a single operator account
func Admin(user, password string) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Users: map[string]string{user: password},
		Realm: "Agape admin",
		Unauthorized: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "admin credentials required",
			})
		},
	})
}
