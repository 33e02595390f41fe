package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

// NewTestClient connects to an isolated Redis DB and flushes it, or skips
// the test when no Redis is reachable.
func NewTestClient(t testing.TB, db int) *redis.Client {
	t.Helper()

	hosts := []string{env.GetEnv("CACHE_HOST", ""), "cache", "localhost", "127.0.0.1"}
	port := env.GetEnv("CACHE_PORT", "6379")
	password := env.GetEnv("CACHE_PASSWORD", "")

	var lastErr error
	for _, host := range hosts {
		if host == "" {
			continue
		}
		c := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", host, port),
			Password: password,
			DB:       db,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := c.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = c.Close()
			lastErr = err
			continue
		}
		if err := c.FlushDB(context.Background()).Err(); err != nil {
			_ = c.Close()
			t.Fatalf("failed to flush redis db %d: %v", db, err)
		}
		t.Cleanup(func() {
			_ = c.FlushDB(context.Background()).Err()
			_ = c.Close()
		})
		return c
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return nil
}
