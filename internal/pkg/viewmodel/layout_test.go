package viewmodel

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestLayoutTitle(t *testing.T) {
	assert.Equal(t, "MemberGate", Layout{SiteTitle: "MemberGate"}.Title())
	assert.Equal(t, "Login | MemberGate", Layout{Page: "Login", SiteTitle: "MemberGate"}.Title())
}

func TestLayoutFlash(t *testing.T) {
	l := Layout{}
	assert.Empty(t, l.FlashType())
	assert.Empty(t, l.FlashMessage())

	l.Msg = fiber.Map{"type": "error", "message": "Invalid referral code."}
	assert.Equal(t, "error", l.FlashType())
	assert.Equal(t, "Invalid referral code.", l.FlashMessage())
}
