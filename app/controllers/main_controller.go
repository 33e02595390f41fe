package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/entitlements"
	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
	"github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
	"github.com/ManuelReschke/MemberGate/internal/pkg/utils"
)

const privateHomeComments = 20

// HandleHome renders the public landing page
func HandleHome(c *fiber.Ctx) error {
	settings := models.GetAppSettings()
	return render(c, "home", "", fiber.Map{
		"Description":      settings.SiteDescription,
		"RegistrationOpen": settings.IsRegistrationOpen(),
		"IsDev":            env.IsDev(),
	})
}

// HandlePrivateHome renders the member start page
func HandlePrivateHome(c *fiber.Ctx) error {
	s := svc()
	uc := usercontext.GetUserContext(c)

	categories, err := s.Repos.Education.Categories()
	if err != nil {
		log.Errorf("[Hub] Could not load categories: %v", err)
	}
	comments, err := s.Repos.Comment.General(privateHomeComments)
	if err != nil {
		log.Errorf("[Comment] Could not load community comments: %v", err)
	}

	data := fiber.Map{
		"Categories": categories,
		"Comments":   visibleComments(c, comments),
		"Package":    uc.Package,
	}
	if user, err := s.Repos.User.GetByID(uc.UserID); err == nil {
		plan := entitlements.PlanFor(user)
		data["Member"] = user
		data["Avatar"] = utils.GetGravatarURL(user.Email, 96)
		data["Package"] = string(plan)
		data["MaxImages"] = entitlements.MaxListingImages(plan)
		data["ListingLimit"] = entitlements.ActiveListingLimit(plan)
	}
	return render(c, "privatehome", "Members", data)
}
