package router

import (
	"github.com/gofiber/fiber/v2"

	apiv1 "github.com/ManuelReschke/Agape/internal/api/v1"
)

// Router installs one group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter mounts the health endpoint and the v1 API. admin guards the
// operator routes.
func InstallRouter(app *fiber.App, server *apiv1.APIServer, admin fiber.Handler) {
	for _, r := range []Router{NewHttpRouter(), NewApiRouter(server, admin)} {
		r.InstallRouter(app)
	}
}
