package middleware

import (
	"github.com/gofiber/fiber/v2"

	icuser "github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
)

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin; redirects otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if !icuser.IsAdmin(c) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAPISessionAuth ensures a logged-in session for API routes and returns JSON 401 instead of redirect.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RedirectMembers sends logged-in members from the public landing pages to
// their home.
func RedirectMembers(c *fiber.Ctx) error {
	if icuser.IsLoggedIn(c) {
		return c.Redirect("/privatehome", fiber.StatusSeeOther)
	}
	return c.Next()
}
