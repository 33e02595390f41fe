package emailcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

const (
	MsgRequired     = "Email is required."
	MsgInvalidShape = "Please enter a valid email format."
	MsgAPIError     = "Could not validate email. API error."
	MsgUndeliver    = "This email address does not appear to exist."

	DefaultEndpoint = "https://emailreputation.abstractapi.com/v1/"
	MinScore        = 0.7
)

var shape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Result is returned by the email validation endpoint.
type Result struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

// Config for the abstractapi email reputation check.
type Config struct {
	APIKey   string        `env:"EMAIL_VALIDATION_API_KEY"`
	Endpoint string        `env:"EMAIL_VALIDATION_ENDPOINT" envDefault:"https://emailreputation.abstractapi.com/v1/"`
	Timeout  time.Duration `env:"EMAIL_VALIDATION_TIMEOUT" envDefault:"5s"`
}

type Checker struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Checker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Checker{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// FromEnv builds a checker from EMAIL_VALIDATION_* variables.
func FromEnv() (*Checker, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		log.Warn("[EmailCheck] EMAIL_VALIDATION_API_KEY is not set, only the format is checked")
	}
	return New(cfg), nil
}

type score float64

func (s *score) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*s = score(f)
	return nil
}

type reputationResponse struct {
	EmailQuality *struct {
		Score score `json:"score"`
	} `json:"email_quality"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Validate checks the shape, then the reputation API. Transport failures accept the address.
func (c *Checker) Validate(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return Result{Message: MsgRequired}
	}
	if !shape.MatchString(email) {
		return Result{Message: MsgInvalidShape}
	}
	if c.cfg.APIKey == "" {
		return Result{IsValid: true}
	}

	resp, err := c.lookup(ctx, email)
	if err != nil {
		log.Errorf("[EmailCheck] Email validation API error: %v", err)
		return Result{IsValid: true}
	}
	if resp.Error != nil {
		log.Errorf("[EmailCheck] Email validation API error: %s", resp.Error.Message)
		return Result{Message: MsgAPIError}
	}
	if resp.EmailQuality != nil && float64(resp.EmailQuality.Score) > MinScore {
		return Result{IsValid: true}
	}
	return Result{Message: MsgUndeliver}
}

// Verify adapts Validate to the registration check.
func (c *Checker) Verify(ctx context.Context, email string) (bool, string) {
	r := c.Validate(ctx, email)
	return r.IsValid, r.Message
}

func (c *Checker) lookup(ctx context.Context, email string) (*reputationResponse, error) {
	q := url.Values{"api_key": {c.cfg.APIKey}, "email": {email}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out reputationResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
	}
	return &out, nil
}
