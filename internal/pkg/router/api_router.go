package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/ManuelReschke/Agape/internal/api/v1"
	"github.com/ManuelReschke/Agape/internal/pkg/cache"
	"github.com/ManuelReschke/Agape/internal/pkg/env"
)

// ApiRouter mounts the versioned JSON API under /api
type ApiRouter struct {
	server *apiv1.APIServer
	admin  fiber.Handler
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 60),
		Expiration: env.GetEnvDuration("API_RATE_WINDOW", time.Minute),
		Storage:    cache.LimiterStorage(),
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "Rate limit exceeded",
			})
		},
	}))

	apiv1.RegisterHandlers(api.Group("/v1"), h.server, h.admin)
}

func NewApiRouter(server *apiv1.APIServer, admin fiber.Handler) *ApiRouter {
	return &ApiRouter{server: server, admin: admin}
}
