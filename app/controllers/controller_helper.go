package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
	"github.com/ManuelReschke/MemberGate/internal/pkg/viewmodel"
)

const mainLayout = "layouts/main"

// render wraps data with the layout model and renders view inside the main layout.
func render(c *fiber.Ctx, view, page string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	layout := layoutFor(c, page)
	if og, ok := data["OG"].(*viewmodel.OpenGraph); ok {
		layout.OGViewModel = og
	}
	data["Layout"] = layout
	data["CSRF"] = layout.CSRF
	return c.Render(view, data, mainLayout)
}

func layoutFor(c *fiber.Ctx, page string) viewmodel.Layout {
	uc := usercontext.GetUserContext(c)
	settings := models.GetAppSettings()
	msg := flash.Get(c)
	return viewmodel.Layout{
		Page:          page,
		SiteTitle:     settings.GetSiteTitle(),
		FromProtected: uc.IsLoggedIn,
		IsError:       msg["type"] == "error",
		Msg:           msg,
		Username:      uc.Username,
		IsAdmin:       uc.IsAdmin,
		Package:       uc.Package,
		CSRF:          csrfToken(c),
		OGViewModel: &viewmodel.OpenGraph{
			Title:       settings.GetSiteTitle(),
			Description: settings.SiteDescription,
			URL:         c.BaseURL() + c.OriginalURL(),
		},
	}
}

func csrfToken(c *fiber.Ctx) string {
	if token, ok := c.Locals("csrf").(string); ok {
		return token
	}
	return ""
}

func flashError(c *fiber.Ctx, message, redirect string) error {
	fm := fiber.Map{
		"type":    "error",
		"message": message,
	}
	return flash.WithError(c, fm).Redirect(redirect)
}

func flashSuccess(c *fiber.Ctx, message, redirect string) error {
	fm := fiber.Map{
		"type":    "success",
		"message": message,
	}
	return flash.WithSuccess(c, fm).Redirect(redirect)
}

// safeRedirect only allows local paths as redirect targets.
func safeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	return target
}

// GetClientIP determines the client address considering Cloudflare and proxies.
func GetClientIP(c *fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(c.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return strings.TrimPrefix(c.IP(), "::ffff:")
}
