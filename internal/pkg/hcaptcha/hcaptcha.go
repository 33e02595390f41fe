package hcaptcha

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

const VerifyURL = "https://hcaptcha.com/siteverify"

var ErrEmptyToken = errors.New("hCaptcha token is empty")

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks tokens against the siteverify endpoint.
type Verifier struct {
	Secret   string
	Endpoint string
	Client   *http.Client
}

// NewVerifier reads HCAPTCHA_SECRET.
func NewVerifier() *Verifier {
	return &Verifier{
		Secret:   env.GetEnv("HCAPTCHA_SECRET", ""),
		Endpoint: VerifyURL,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SiteKey is rendered into the contact form.
func SiteKey() string {
	return env.GetEnv("HCAPTCHA_SITEKEY", "")
}

// Enabled reports whether a secret is configured. Without it the check is skipped.
func (v *Verifier) Enabled() bool {
	return v.Secret != ""
}

func (v *Verifier) Verify(token string) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}
	if v.Secret == "" {
		return false, errors.New("hCaptcha secret is not set")
	}

	formData := url.Values{
		"secret":   {v.Secret},
		"response": {token},
	}

	resp, err := v.Client.PostForm(v.Endpoint, formData)
	if err != nil {
		return false, fmt.Errorf("failed to send request to hCaptcha API: %w", err)
	}
	defer resp.Body.Close()

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode hCaptcha API response: %w", err)
	}

	if !response.Success {
		errorMsg := "hCaptcha validation failed"
		if len(response.ErrorCodes) > 0 {
			errorMsg = errorMsg + ": " + strings.Join(response.ErrorCodes, ", ")
		}
		return false, errors.New(errorMsg)
	}

	return true, nil
}

// Verify checks token with the configured secret
func Verify(token string) (bool, error) {
	return NewVerifier().Verify(token)
}
