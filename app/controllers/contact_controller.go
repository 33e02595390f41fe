package controllers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/MemberGate/internal/pkg/mail"
	"github.com/ManuelReschke/MemberGate/internal/pkg/statistics"
)

const (
	contactPath         = "/contact"
	msgContactRequired  = "Please fill in all fields."
	msgContactInvalid   = "Please check your input and try again."
	msgContactFailed    = "Your message could not be sent. Please try again."
	msgContactDelivered = "Thanks! Your message has been sent."
)

// GET /contact – show contact form
func HandleContact(c *fiber.Ctx) error {
	return render(c, "contact", "Contact", fiber.Map{
		"HcaptchaSitekey": hcaptcha.SiteKey(),
		"CaptchaEnabled":  svc().Captcha.Enabled(),
	})
}

// POST /contact – store the message and notify the team
func HandleContactSubmit(c *fiber.Ctx) error {
	s := svc()
	if s.Writer == nil {
		log.Errorf("[Contact] Refused: no write credentials configured")
		return flashError(c, funnel.MsgMissingWriteCreds, contactPath)
	}

	msg := &models.ContactMessage{
		Name:    strings.TrimSpace(c.FormValue("name")),
		Email:   strings.TrimSpace(c.FormValue("email")),
		Subject: strings.TrimSpace(c.FormValue("subject")),
		Message: strings.TrimSpace(c.FormValue("message")),
	}
	if msg.Name == "" || msg.Email == "" || msg.Subject == "" || msg.Message == "" {
		return flashError(c, msgContactRequired, contactPath)
	}
	if err := msg.Validate(); err != nil {
		return flashError(c, msgContactInvalid, contactPath)
	}

	if s.Captcha.Enabled() {
		valid, err := s.Captcha.Verify(c.FormValue("h-captcha-response"))
		if err != nil || !valid {
			errorMsg := "Captcha validation failed. Please try again."
			if err != nil && env.IsDev() {
				errorMsg = fmt.Sprintf("Captcha validation failed: %v", err)
			}
			return flashError(c, errorMsg, contactPath)
		}
	}

	if err := s.Writer.Contact.Create(msg); err != nil {
		log.Errorf("[Contact] Could not store message from %s: %v", GetClientIP(c), err)
		return flashError(c, msgContactFailed, contactPath)
	}
	log.Infof("[Contact] Message %d received from %s", msg.ID, GetClientIP(c))
	statistics.Invalidate()

	if s.NotifyEmail != "" && s.Jobs != nil {
		subject, body := mail.ContactNotification(msg)
		if _, err := s.Jobs.EnqueueMail(s.NotifyEmail, subject, body); err != nil {
			log.Warnf("[Contact] Could not queue notification for message %d: %v", msg.ID, err)
		}
	}

	return flashSuccess(c, msgContactDelivered, contactPath)
}
