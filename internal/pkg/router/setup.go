package router

import (
	"github.com/gofiber/fiber/v2"

	apiv1 "github.com/ManuelReschke/MemberGate/internal/api/v1"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Config carries what the routers cannot look up on their own.
type Config struct {
	API *apiv1.APIServer
	// OpenAPISpec is the path of public/docs/v1/openapi.yml.
	OpenAPISpec string
	// WebhookKey guards the paid conversion endpoint.
	WebhookKey string
}

func InstallRouter(app *fiber.App, cfg Config) {
	// Install HttpRouter first to initialize the session stores, oauth
	// providers and the global UserContext middleware.
	setup(app, NewHttpRouter(), NewApiRouter(cfg))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
