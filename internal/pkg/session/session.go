package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/MemberGate/internal/pkg/cache"
	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

// Redis databases: cache uses 0.
const (
	authDB  = 1
	OAuthDB = 2
	flowDB  = 3
)

// FlowLifetime keeps the funnel position for about a year.
const FlowLifetime = 365 * 24 * time.Hour

var (
	sessionStore *session.Store
	flowStore    *session.Store
)

// RedisStorage returns fiber session storage on the cache server using db.
func RedisStorage(db int) *redis.Storage {
	// Get Redis client configuration from existing cache setup
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: db,
		Reset:    false,
	})
}

// NewSessionStore creates the login session store.
func NewSessionStore() *session.Store {
	sessionStore = session.New(session.Config{
		Storage:        RedisStorage(authDB),
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     env.GetEnvDuration("SESSION_LIFETIME", 24*time.Hour),
		KeyLookup:      "cookie:session_id",
	})

	return sessionStore
}

// NewFlowStore creates the long lived funnel store keyed by the funnel_id
// cookie. It is independent of login so the funnel survives logouts.
func NewFlowStore() *session.Store {
	flowStore = session.New(session.Config{
		Storage:        RedisStorage(flowDB),
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     FlowLifetime,
		KeyLookup:      "cookie:funnel_id",
	})

	return flowStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}

func GetFlowStore() *session.Store {
	return flowStore
}

// UseStores swaps both stores, for tests running on memory storage.
func UseStores(auth, flow *session.Store) {
	sessionStore = auth
	flowStore = flow
}

// SetSessionValue stores a key-value pair in the user's individual session
func SetSessionValue(c *fiber.Ctx, key string, value string) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %v", err)
	}

	sess.Set(key, value)
	return sess.Save()
}

// GetSessionValue retrieves a value by key from the user's individual session
func GetSessionValue(c *fiber.Ctx, key string) string {
	if sessionStore == nil {
		return ""
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return ""
	}

	value := sess.Get(key)
	if value == nil {
		return ""
	}

	if strValue, ok := value.(string); ok {
		return strValue
	}

	return ""
}
