package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/app/repository"
)

const msgNoMembership = "No membership found for this account. Please sign up with your referral code."

var errNoMembership = errors.New("oauth identity belongs to no member")

// HandleOAuthCallback completes the provider flow and logs an existing member in.
// OAuth never creates accounts; membership starts with a referral code.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[OAuth] Completing auth failed: %v", err)
		return flashError(c, msgLoginFailed, "/login")
	}

	s := svc()
	user, err := resolveOAuthMember(s.Repos, s.Writer, u)
	if err != nil {
		if errors.Is(err, errNoMembership) {
			return flashError(c, msgNoMembership, "/signup")
		}
		log.Errorf("[OAuth] Resolving %s identity failed: %v", u.Provider, err)
		return flashError(c, msgLoginFailed, "/login")
	}

	if err := startSession(c, user); err != nil {
		log.Errorf("[Auth] Could not start session for %s: %v", user.ID, err)
		return flashError(c, msgLoginFailed, "/login")
	}
	return c.Redirect("/privatehome", fiber.StatusSeeOther)
}

// resolveOAuthMember finds the member of a provider identity, linking it on
// the first sign in by matching the email of a registered member.
func resolveOAuthMember(repos, writer *repository.Repositories, u goth.User) (*models.User, error) {
	user, err := repos.User.GetByProvider(u.Provider, u.UserID)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		email := strings.TrimSpace(u.Email)
		if email == "" {
			return nil, errNoMembership
		}
		user, err = repos.User.GetByEmail(email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNoMembership
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if !user.HasCredentials() && user.RegisteredAt == nil {
		// a lead that never finished registration
		return nil, errNoMembership
	}

	if writer != nil {
		var exp *time.Time
		if !u.ExpiresAt.IsZero() {
			t := u.ExpiresAt
			exp = &t
		}
		account := &models.ProviderAccount{
			UserID:         user.ID,
			Provider:       u.Provider,
			ProviderUserID: u.UserID,
			AccessToken:    u.AccessToken,
			RefreshToken:   u.RefreshToken,
			ExpiresAt:      exp,
		}
		if err := writer.User.LinkProvider(account); err != nil {
			log.Warnf("[OAuth] Could not link %s identity of %s: %v", u.Provider, user.ID, err)
		}
	}
	return user, nil
}
