package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// Global admin controller instance
var adminController *AdminController

// InitializeAdminController initializes the global admin controller with the services
func InitializeAdminController() {
	adminController = NewAdminController(svc())
}

// GetAdminController returns the global admin controller instance
func GetAdminController() *AdminController {
	if adminController == nil {
		InitializeAdminController()
	}
	return adminController
}

// Adapter functions to maintain compatibility with existing router

// HandleAdminDashboard - Adapter for admin dashboard
func HandleAdminDashboard(c *fiber.Ctx) error {
	return GetAdminController().HandleDashboard(c)
}

// HandleAdminReferrals - Adapter for the referral code list
func HandleAdminReferrals(c *fiber.Ctx) error {
	return GetAdminController().HandleReferrals(c)
}

// HandleAdminReferralCreate - Adapter for referral code creation
func HandleAdminReferralCreate(c *fiber.Ctx) error {
	return GetAdminController().HandleReferralCreate(c)
}

// HandleAdminReferralToggle - Adapter for enabling and disabling a code
func HandleAdminReferralToggle(c *fiber.Ctx) error {
	return GetAdminController().HandleReferralToggle(c)
}

// HandleAdminReferralExport - Adapter for the CSV export
func HandleAdminReferralExport(c *fiber.Ctx) error {
	return GetAdminController().HandleReferralExport(c)
}

// HandleAdminAudit - Adapter for the ledger audit page
func HandleAdminAudit(c *fiber.Ctx) error {
	return GetAdminController().HandleAudit(c)
}

// HandleAdminAuditRun - Adapter for running the audit
func HandleAdminAuditRun(c *fiber.Ctx) error {
	return GetAdminController().HandleAuditRun(c)
}

// HandleAdminSettings - Adapter for settings page
func HandleAdminSettings(c *fiber.Ctx) error {
	return GetAdminController().HandleSettings(c)
}

// HandleAdminSettingsUpdate - Adapter for settings update
func HandleAdminSettingsUpdate(c *fiber.Ctx) error {
	return GetAdminController().HandleSettingsUpdate(c)
}

// HandleAdminComments - Adapter for comment moderation
func HandleAdminComments(c *fiber.Ctx) error {
	return GetAdminController().HandleComments(c)
}

// HandleAdminCommentModerate - Adapter for a moderation action
func HandleAdminCommentModerate(c *fiber.Ctx) error {
	return GetAdminController().HandleCommentModerate(c)
}

// HandleAdminContactMessages - Adapter for the contact inbox
func HandleAdminContactMessages(c *fiber.Ctx) error {
	return GetAdminController().HandleContactMessages(c)
}
