package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Package    string `json:"package"`
}

// Set stores the user context and the legacy locals for the request.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(localsKey, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
	if uc.IsLoggedIn {
		c.Locals(KeyUserID, uc.UserID)
		c.Locals(KeyUsername, uc.Username)
	}
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(localsKey).(UserContext); ok {
		return uc
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or "" if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}

// GetUsername returns the current user's username, or empty string if not logged in
func GetUsername(c *fiber.Ctx) string {
	return GetUserContext(c).Username
}

// IsPremium reports whether the member is on the paid package.
func IsPremium(c *fiber.Ctx) bool {
	return GetUserContext(c).Package == "premium"
}
