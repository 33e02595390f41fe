package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/MemberGate/app/controllers"
	"github.com/ManuelReschke/MemberGate/internal/pkg/middleware"
)

func (h *HttpRouter) registerAdminRoutes(router fiber.Router) {
	adminGroup := router.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)

	// Referral codes
	adminGroup.Get("/referrals", controllers.HandleAdminReferrals)
	adminGroup.Post("/referrals", controllers.HandleAdminReferralCreate)
	adminGroup.Post("/referrals/:id/toggle", controllers.HandleAdminReferralToggle)
	adminGroup.Get("/referrals/:id/export", controllers.HandleAdminReferralExport)

	// Ledger audit
	adminGroup.Get("/audit", controllers.HandleAdminAudit)
	adminGroup.Post("/audit", controllers.HandleAdminAuditRun)

	// Settings
	adminGroup.Get("/settings", controllers.HandleAdminSettings)
	adminGroup.Post("/settings", controllers.HandleAdminSettingsUpdate)

	// Moderation + inbox
	adminGroup.Get("/comments", controllers.HandleAdminComments)
	adminGroup.Post("/comments/:id/:action", controllers.HandleAdminCommentModerate)
	adminGroup.Get("/messages", controllers.HandleAdminContactMessages)
}
