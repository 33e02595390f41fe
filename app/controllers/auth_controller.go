package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/oauth"
	"github.com/ManuelReschke/MemberGate/internal/pkg/session"
	"github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
)

// notice: in production you should not inform the user
// with detailed messages about login failures
const msgLoginFailed = "There is a problem with the login process"

var errNoSessionStore = errors.New("session store not initialized")

func HandleAuthLogin(c *fiber.Ctx) error {
	return render(c, "auth/login", "Log in", fiber.Map{
		"Google":  oauth.Enabled(oauth.ProviderGoogle),
		"Discord": oauth.Enabled(oauth.ProviderDiscord),
	})
}

func HandleAuthLoginPost(c *fiber.Ctx) error {
	user, err := svc().Funnel.Authenticate(c.UserContext(), c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		if !errors.Is(err, funnel.ErrInvalidCredentials) {
			log.Errorf("[Auth] Login lookup failed: %v", err)
		}
		return flashError(c, msgLoginFailed, "/login")
	}

	if err := startSession(c, user); err != nil {
		log.Errorf("[Auth] Could not start session for %s: %v", user.ID, err)
		return flashError(c, msgLoginFailed, "/login")
	}

	return flashSuccess(c, "You have successfully logged in", "/privatehome")
}

func HandleAuthLogout(c *fiber.Ctx) error {
	store := session.GetSessionStore()
	if store == nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	sess, err := store.Get(c)
	if err != nil {
		return flashError(c, "Logged out fail", "/")
	}
	if err := sess.Destroy(); err != nil {
		return flashError(c, "Logged out fail", "/")
	}

	return flashSuccess(c, "You have successfully logged out", "/login")
}

// startSession stores the member in the login session and records the login.
func startSession(c *fiber.Ctx, user *models.User) error {
	store := session.GetSessionStore()
	if store == nil {
		return errNoSessionStore
	}
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}

	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.UsernameValue())
	sess.Set(usercontext.KeyIsAdmin, user.IsAdmin())
	sess.Set(usercontext.KeyPackage, user.Package)
	if err := sess.Save(); err != nil {
		return err
	}

	if w := svc().Writer; w != nil {
		if err := w.User.TouchLastLogin(user.ID); err != nil {
			log.Warnf("[Auth] Could not record login of %s: %v", user.ID, err)
		}
	}
	return nil
}
