package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis compatible cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to cache: %v", err)
	} else {
		log.Infof("[Cache] Connected to cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// SetClient replaces the shared client, used by tests with an isolated DB.
func SetClient(c *redis.Client) {
	client = c
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// GetInt retrieves an integer value from the cache by key
func GetInt(key string) (int, error) {
	val, err := GetClient().Get(ctx, key).Int()
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// Remember returns the JSON value cached under key or stores the result of
// load. Cache failures fall through to load.
func Remember[T any](key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if raw, err := GetClient().Get(ctx, key).Bytes(); err == nil {
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			return v, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Warnf("[Cache] Read %s failed: %v", key, err)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if raw, jerr := json.Marshal(v); jerr == nil {
		if serr := GetClient().Set(ctx, key, raw, ttl).Err(); serr != nil {
			log.Warnf("[Cache] Write %s failed: %v", key, serr)
		}
	}
	return v, nil
}
