package apiv1

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/MemberGate/internal/pkg/emailcheck"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
)

// EmailValidator checks whether an address is worth accepting.
type EmailValidator interface {
	Validate(ctx context.Context, email string) emailcheck.Result
}

// APIServer serves the funnel operations as JSON.
type APIServer struct {
	funnel   *funnel.Service
	emails   EmailValidator
	validate *validator.Validate
}

// NewAPIServer creates a new API server instance. Without an email validator
// only the address format is checked.
func NewAPIServer(f *funnel.Service, emails EmailValidator) *APIServer {
	if emails == nil {
		emails = emailcheck.New(emailcheck.Config{})
	}
	return &APIServer{funnel: f, emails: emails, validate: validator.New()}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

func (s *APIServer) PostReferralValidate(c *fiber.Ctx) error {
	var req ReferralRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(s.funnel.ValidateReferral(c.UserContext(), req.Code))
}

func (s *APIServer) PostLeadPending(c *fiber.Ctx) error {
	var req PendingLeadRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(s.funnel.MarkPending(c.UserContext(), req.Code, req.Answers, req.Name))
}

// PostLeadPaid is called by the payment provider once a checkout completed.
func (s *APIServer) PostLeadPaid(c *fiber.Ctx) error {
	var req PaidLeadRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(s.funnel.MarkPaid(c.UserContext(), req.Code, req.Identity, req.Answers, req.PendingUserID))
}

func (s *APIServer) PostUserRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(s.funnel.RegisterUser(c.UserContext(), req.registration()))
}

func (s *APIServer) PostEmailValidate(c *fiber.Ctx) error {
	var req EmailRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(s.emails.Validate(c.UserContext(), req.Email))
}

func (s *APIServer) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	})
}
