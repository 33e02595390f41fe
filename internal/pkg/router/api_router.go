package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/ManuelReschke/MemberGate/internal/api/v1"
)

const apiV1Prefix = "/api/v1"

type ApiRouter struct {
	server     *apiv1.APIServer
	specPath   string
	webhookKey string
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	var handlers []fiber.Handler
	if doc, err := apiv1.LoadSpec(h.specPath); err != nil {
		log.Errorf("[API] OpenAPI document unavailable, requests are not schema checked: %v", err)
	} else if validate, err := apiv1.RequestValidator(doc, apiV1Prefix); err != nil {
		log.Errorf("[API] Could not build request validator: %v", err)
	} else {
		handlers = append(handlers, validate)
	}
	v1 := api.Group("/v1", handlers...)
	apiv1.RegisterHandlers(v1, h.server, apiv1.WebhookKeyAuth(h.webhookKey))
}

func NewApiRouter(cfg Config) *ApiRouter {
	return &ApiRouter{server: cfg.API, specPath: cfg.OpenAPISpec, webhookKey: cfg.WebhookKey}
}
