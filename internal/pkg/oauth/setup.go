package oauth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
	appsession "github.com/ManuelReschke/MemberGate/internal/pkg/session"
)

// Provider names accepted on /auth/:provider.
const (
	ProviderGoogle  = "google"
	ProviderDiscord = "discord"
)

// Config holds the OAuth client credentials.
type Config struct {
	PublicDomain  string `env:"PUBLIC_DOMAIN"`
	AppPort       string `env:"APP_PORT" envDefault:"4000"`
	GoogleKey     string `env:"GOOGLE_KEY"`
	GoogleSecret  string `env:"GOOGLE_SECRET"`
	DiscordKey    string `env:"DISCORD_KEY"`
	DiscordSecret string `env:"DISCORD_SECRET"`
}

// BaseURL is the absolute origin used for callback URLs.
func (c Config) BaseURL() string {
	base := strings.TrimRight(c.PublicDomain, "/")
	if base == "" {
		base = "http://localhost:" + c.AppPort
	}
	return base
}

// Providers returns the providers that have credentials configured.
func (c Config) Providers() []goth.Provider {
	base := c.BaseURL()
	var providers []goth.Provider
	if c.GoogleKey != "" {
		providers = append(providers, google.New(c.GoogleKey, c.GoogleSecret, base+"/auth/google/callback", "email", "profile"))
	}
	if c.DiscordKey != "" {
		providers = append(providers, discord.New(c.DiscordKey, c.DiscordSecret, base+"/auth/discord/callback",
			discord.ScopeIdentify, discord.ScopeEmail))
	}
	return providers
}

// Setup registers the configured providers and keeps the OAuth state in Redis.
// It is safe to call multiple times; providers will just be re-registered.
func Setup() error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return err
	}
	goth.ClearProviders()
	goth.UseProviders(cfg.Providers()...)

	gothfiber.SessionStore = session.New(session.Config{
		Storage:        appsession.RedisStorage(appsession.OAuthDB),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     time.Hour,
	})
	return nil
}

// Enabled reports whether a provider is registered.
func Enabled(name string) bool {
	_, err := goth.GetProvider(name)
	return err == nil
}
