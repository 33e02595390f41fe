package apiv1

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
)

// WebhookKeyHeader carries the shared secret of the payment webhook.
const WebhookKeyHeader = "X-API-Key"

// RegisterHandlers mounts the v1 endpoints. paidGuard protects the paid
// conversion, which only the payment provider may trigger.
func RegisterHandlers(router fiber.Router, s *APIServer, paidGuard fiber.Handler) {
	router.Get("/ping", s.GetPing)
	router.Post("/referrals/validate", s.PostReferralValidate)
	router.Post("/leads/pending", s.PostLeadPending)
	router.Post("/leads/paid", paidGuard, s.PostLeadPaid)
	router.Post("/users/register", s.PostUserRegister)
	router.Post("/emails/validate", s.PostEmailValidate)
}

// WebhookKeyAuth accepts requests carrying secret in the X-API-Key header.
// An empty secret rejects everything.
func WebhookKeyAuth(secret string) fiber.Handler {
	if secret == "" {
		log.Warn("[API] PAYMENT_WEBHOOK_KEY is not set, /leads/paid is disabled")
	}
	return keyauth.New(keyauth.Config{
		KeyLookup: "header:" + WebhookKeyHeader,
		Validator: func(_ *fiber.Ctx, key string) (bool, error) {
			if secret == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
				return false, keyauth.ErrMissingOrMalformedAPIKey
			}
			return true, nil
		},
		ErrorHandler: func(c *fiber.Ctx, _ error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "invalid or missing API key",
			})
		},
	})
}
