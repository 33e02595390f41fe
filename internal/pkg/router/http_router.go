package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/internal/pkg/flow"
	"github.com/ManuelReschke/MemberGate/internal/pkg/middleware"
	"github.com/ManuelReschke/MemberGate/internal/pkg/oauth"
	"github.com/ManuelReschke/MemberGate/internal/pkg/session"
)

type HttpRouter struct {
	flow *flow.Tracker
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	// init sessions: login and funnel position live in separate stores
	if session.GetSessionStore() == nil {
		session.NewSessionStore()
	}
	if session.GetFlowStore() == nil {
		session.NewFlowStore()
	}
	h.flow = flow.NewTracker(session.GetFlowStore())

	// init oauth providers
	if err := oauth.Setup(); err != nil {
		log.Errorf("[OAuth] Setup failed, social login disabled: %v", err)
	}

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

// gate admits visitors whose funnel state lies in [min, max].
func (h *HttpRouter) gate(min, max flow.State) fiber.Handler {
	return h.flow.RequireState(min, max)
}
