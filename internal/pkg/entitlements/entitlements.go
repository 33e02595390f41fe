package entitlements

import (
	"github.com/ManuelReschke/MemberGate/app/models"
)

type Plan string

const (
	PlanStandard Plan = models.PACKAGE_STANDARD
	PlanPremium  Plan = models.PACKAGE_PREMIUM
)

// PlanFor returns the member's plan; unknown packages fall back to standard.
func PlanFor(u *models.User) Plan {
	if u != nil && (u.IsPremium || u.Package == models.PACKAGE_PREMIUM) {
		return PlanPremium
	}
	return PlanStandard
}

// VerifiedSeller marks listings of premium members as verified.
func VerifiedSeller(u *models.User) bool {
	return PlanFor(u) == PlanPremium
}

// MaxListingImages returns how many images a listing of this plan may carry.
func MaxListingImages(plan Plan) int {
	if plan == PlanPremium {
		return 8
	}
	return 3
}

// ActiveListingLimit caps the number of simultaneously active listings.
func ActiveListingLimit(plan Plan) int {
	if plan == PlanPremium {
		return 50
	}
	return 5
}
