package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/ManuelReschke/MemberGate/app/controllers"
	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
	"github.com/ManuelReschke/MemberGate/internal/pkg/flow"
	"github.com/ManuelReschke/MemberGate/internal/pkg/middleware"
)

func csrfConfig() csrf.Config {
	return csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}
}

func (h *HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	group := app.Group("", cors.New(), csrf.New(csrfConfig()))

	// Landing
	group.Get("/", middleware.RedirectMembers, controllers.HandleHome)
	group.Get("/home", middleware.RedirectMembers, controllers.HandleHome)
	group.Get("/contact", controllers.HandleContact)
	group.Post("/contact", controllers.HandleContactSubmit)

	// Enrollment funnel; every page only admits its own state
	group.Get(flow.SignupPage, h.gate(flow.Anonymous, flow.Anonymous), controllers.HandleSignup)
	group.Post(flow.SignupPage, h.gate(flow.Anonymous, flow.Anonymous), controllers.HandleSignupPost)
	group.Get(flow.QuestionnairePage, h.gate(flow.ReferralAccepted, flow.ReferralAccepted), controllers.HandleQuestionnaire)
	group.Post(flow.QuestionnairePage, h.gate(flow.ReferralAccepted, flow.ReferralAccepted), controllers.HandleQuestionnairePost)
	group.Get(flow.PostQuestionnairePage, h.gate(flow.QuestionnaireComplete, flow.Registered), controllers.HandlePostQuestionnaire)
	group.Get(flow.RegisterPage, h.gate(flow.QuestionnaireComplete, flow.QuestionnaireComplete), controllers.HandleRegister)
	group.Post(flow.RegisterPage, h.gate(flow.QuestionnaireComplete, flow.QuestionnaireComplete), controllers.HandleRegisterPost)

	// Auth
	group.Get("/login", middleware.RedirectMembers, controllers.HandleAuthLogin)
	group.Post("/login", middleware.RedirectMembers, controllers.HandleAuthLoginPost)
	group.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Member area
	group.Get(flow.MemberPage, middleware.RequireAuth, controllers.HandlePrivateHome)
	group.Get("/hub", middleware.RequireAuth, controllers.HandleHubIndex)
	group.Get("/hub/:category", middleware.RequireAuth, controllers.HandleHubCategory)
	group.Get("/hub/:category/:lesson", middleware.RequireAuth, controllers.HandleHubLesson)
	group.Post("/comments", middleware.RequireAuth, controllers.HandleCommentCreate)

	// Marketplace
	group.Get("/marketplace", middleware.RequireAuth, controllers.HandleMarketplace)
	group.Get("/marketplace/new", middleware.RequireAuth, controllers.HandleMarketplaceNew)
	group.Post("/marketplace", middleware.RequireAuth, controllers.HandleMarketplaceCreate)
	group.Post("/marketplace/:id/sold", middleware.RequireAuth, controllers.HandleMarketplaceSold)

	h.registerAdminRoutes(group)
}
