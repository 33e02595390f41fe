package apiv1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/app/repository"
	"github.com/ManuelReschke/MemberGate/internal/pkg/database"
	"github.com/ManuelReschke/MemberGate/internal/pkg/emailcheck"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

const (
	specPath   = "../../../public/docs/v1/openapi.yml"
	webhookKey = "s3cret"
)

type stubEmails struct {
	calls []string
}

func (s *stubEmails) Validate(_ context.Context, email string) emailcheck.Result {
	s.calls = append(s.calls, email)
	if strings.HasSuffix(email, "@example.com") {
		return emailcheck.Result{IsValid: true}
	}
	return emailcheck.Result{Message: emailcheck.MsgUndeliver}
}

type apiEnv struct {
	t      *testing.T
	app    *fiber.App
	repos  *repository.Repositories
	emails *stubEmails
}

func newAPIEnv(t *testing.T, opts ...funnel.Option) *apiEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	repos := repository.NewRepositories(db)

	doc, err := LoadSpec(specPath)
	require.NoError(t, err)
	validate, err := RequestValidator(doc, "/api/v1")
	require.NoError(t, err)

	emails := &stubEmails{}
	server := NewAPIServer(funnel.NewService(funnel.NewRepositoryStore(repos), opts...), emails)
	app := fiber.New()
	RegisterHandlers(app.Group("/api/v1", validate), server, WebhookKeyAuth(webhookKey))
	return &apiEnv{t: t, app: app, repos: repos, emails: emails}
}

func (e *apiEnv) call(method, path, payload string, headers ...string) (int, map[string]any) {
	e.t.Helper()
	var req *http.Request
	if payload == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(payload))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *apiEnv) createCode(code string, active bool) *models.ReferralCode {
	e.t.Helper()
	rc := &models.ReferralCode{Code: code, IsActive: true}
	require.NoError(e.t, e.repos.Referral.Create(rc))
	if !active {
		require.NoError(e.t, e.repos.Referral.SetActive(rc.ID, false))
	}
	return rc
}

func (e *apiEnv) referral(code string) *models.ReferralCode {
	e.t.Helper()
	rc, err := e.repos.Referral.GetByCode(code)
	require.NoError(e.t, err)
	return rc
}

func TestPing(t *testing.T) {
	env := newAPIEnv(t)
	status, body := env.call(fiber.MethodGet, "/api/v1/ping", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pong", body["ping"])
}

func TestReferralValidate(t *testing.T) {
	env := newAPIEnv(t)
	env.createCode("VIP10", true)
	env.createCode("OLD", false)

	tests := []struct {
		name    string
		code    string
		valid   bool
		message string
	}{
		{"active code any case", "vip10", true, funnel.MsgReferralAccepted},
		{"inactive code", "OLD", false, funnel.MsgInvalidReferral},
		{"unknown code", "NOPE", false, funnel.MsgInvalidReferral},
		{"blank code", "   ", false, funnel.MsgEnterReferral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.call(fiber.MethodPost, "/api/v1/referrals/validate", `{"code":"`+tt.code+`"}`)
			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, tt.valid, body["valid"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestSchemaRejectsMalformedRequests(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.call(fiber.MethodPost, "/api/v1/referrals/validate", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])

	status, _ = env.call(fiber.MethodPost, "/api/v1/referrals/validate", `{"code":42}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = env.call(fiber.MethodPost, "/api/v1/users/register", `{"name":"Jane"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = env.call(fiber.MethodPost, "/api/v1/referrals/revoke", `{"code":"VIP10"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])
}

func TestLeadLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	env.createCode("VIP10", true)

	status, body := env.call(fiber.MethodPost, "/api/v1/leads/pending",
		`{"code":"VIP10","answers":{"q_name":"Jane Doe","q_email":"jane@example.com"}}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["success"], body["error"])
	leadID := body["userId"].(string)

	rc := env.referral("VIP10")
	assert.Equal(t, 1, rc.PendingCount)
	require.Len(t, rc.Members(ledger.PendingUsers), 1)

	paid := `{"code":"VIP10","identity":{"email":"jane@example.com"},"pendingUserId":"` + leadID + `"}`
	status, _ = env.call(fiber.MethodPost, "/api/v1/leads/paid", paid)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = env.call(fiber.MethodPost, "/api/v1/leads/paid", paid, WebhookKeyHeader, "wrong")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, 1, env.referral("VIP10").PendingCount)

	status, body = env.call(fiber.MethodPost, "/api/v1/leads/paid", paid, WebhookKeyHeader, webhookKey)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["success"], body["error"])
	assert.Equal(t, leadID, body["userId"])

	rc = env.referral("VIP10")
	assert.Equal(t, 0, rc.PendingCount)
	assert.Equal(t, 1, rc.PaidCount)
	assert.Empty(t, rc.Members(ledger.PendingUsers))
	assert.Len(t, rc.Members(ledger.PaidUsers), 1)

	user, err := env.repos.User.GetByID(leadID)
	require.NoError(t, err)
	assert.True(t, user.IsPremium)
}

func TestLeadPending_UnknownCode(t *testing.T) {
	env := newAPIEnv(t)
	status, body := env.call(fiber.MethodPost, "/api/v1/leads/pending", `{"code":"NOPE","answers":{}}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, funnel.MsgUnknownReferral, body["error"])
}

func TestLeadPaid_RejectsMalformedLeadID(t *testing.T) {
	env := newAPIEnv(t)
	env.createCode("VIP10", true)
	status, _ := env.call(fiber.MethodPost, "/api/v1/leads/paid",
		`{"code":"VIP10","pendingUserId":"not-a-uuid"}`, WebhookKeyHeader, webhookKey)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, 0, env.referral("VIP10").PaidCount)
}

func TestWithoutWriteAccess(t *testing.T) {
	env := newAPIEnv(t, funnel.WithoutWriteAccess())
	env.createCode("VIP10", true)
	status, body := env.call(fiber.MethodPost, "/api/v1/leads/pending", `{"code":"VIP10","answers":{}}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, funnel.MsgMissingWriteCreds, body["error"])
	assert.Equal(t, 0, env.referral("VIP10").PendingCount)
}

func TestUserRegister(t *testing.T) {
	env := newAPIEnv(t)
	payload := `{"name":"Jane","username":"jane","email":"jane@example.com","password":"supersecret"}`

	status, body := env.call(fiber.MethodPost, "/api/v1/users/register", payload)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"], body["error"])
	assert.Equal(t, funnel.MemberHome, body["redirect"])

	_, body = env.call(fiber.MethodPost, "/api/v1/users/register", payload)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, funnel.MsgUsernameTaken, body["error"])

	_, body = env.call(fiber.MethodPost, "/api/v1/users/register",
		`{"name":"John","username":"john","email":"john@example.com","password":"short"}`)
	assert.Equal(t, funnel.MsgPasswordTooShort, body["error"])
}

func TestEmailValidate(t *testing.T) {
	env := newAPIEnv(t)

	_, body := env.call(fiber.MethodPost, "/api/v1/emails/validate", `{"email":"jane@example.com"}`)
	assert.Equal(t, true, body["isValid"])

	_, body = env.call(fiber.MethodPost, "/api/v1/emails/validate", `{"email":"jane@nowhere.test"}`)
	assert.Equal(t, false, body["isValid"])
	assert.Equal(t, emailcheck.MsgUndeliver, body["message"])
	assert.Equal(t, []string{"jane@example.com", "jane@nowhere.test"}, env.emails.calls)
}

func TestNewAPIServer_DefaultsToFormatCheck(t *testing.T) {
	s := NewAPIServer(nil, nil)
	assert.True(t, s.emails.Validate(context.Background(), "jane@example.com").IsValid)
	assert.Equal(t, emailcheck.MsgInvalidShape, s.emails.Validate(context.Background(), "jane@").Message)
}
