package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/session"
	"github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
func UserContextMiddleware(c *fiber.Ctx) error {
	// Goth keeps its own session on /auth/*; do not touch ours there.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	store := session.GetSessionStore()
	if store == nil {
		usercontext.Set(c, usercontext.UserContext{})
		return c.Next()
	}
	sess, err := store.Get(c)
	if err != nil {
		log.Warnf("[Session] Could not load session: %v", err)
		usercontext.Set(c, usercontext.UserContext{})
		return c.Next()
	}

	userID, _ := sess.Get(usercontext.KeyUserID).(string)
	authenticated, _ := sess.Get(usercontext.AuthKey).(bool)
	if userID == "" || !authenticated {
		usercontext.Set(c, usercontext.UserContext{})
		return c.Next()
	}

	username, _ := sess.Get(usercontext.KeyUsername).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)
	pkg, _ := sess.Get(usercontext.KeyPackage).(string)
	if pkg == "" {
		pkg = models.PACKAGE_STANDARD
	}

	usercontext.Set(c, usercontext.UserContext{
		UserID:     userID,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
		Package:    pkg,
	})
	return c.Next()
}
