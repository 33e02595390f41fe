package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/MemberGate/app/controllers"
)

func (h *HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Social OAuth; goth keeps its own state cookie
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	app.Get("/docs/api", func(c *fiber.Ctx) error {
		return c.Redirect("/docs/api/v1", fiber.StatusMovedPermanently)
	})
}
