package apiv1

import (
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
)

// Pong is the health check response.
type Pong struct {
	Ping string `json:"ping"`
}

// ErrorResponse is returned for requests rejected before reaching a funnel operation.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ReferralRequest struct {
	Code string `json:"code" validate:"max=64"`
}

type PendingLeadRequest struct {
	Code    string         `json:"code" validate:"max=64"`
	Answers funnel.Answers `json:"answers"`
	Name    string         `json:"name" validate:"max=200"`
}

type PaidLeadRequest struct {
	Code          string          `json:"code" validate:"max=64"`
	Identity      funnel.Identity `json:"identity"`
	Answers       funnel.Answers  `json:"answers"`
	PendingUserID string          `json:"pendingUserId" validate:"omitempty,uuid"`
}

type RegisterRequest struct {
	Name     string         `json:"name" validate:"max=200"`
	Username string         `json:"username" validate:"max=64"`
	Email    string         `json:"email" validate:"max=254"`
	Password string         `json:"password" validate:"max=128"`
	Answers  funnel.Answers `json:"answers"`
}

func (r RegisterRequest) registration() funnel.Registration {
	return funnel.Registration{
		Name:     r.Name,
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
		Answers:  r.Answers,
	}
}

type EmailRequest struct {
	Email string `json:"email" validate:"max=254"`
}
