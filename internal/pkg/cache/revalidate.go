package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	pagePrefix        = "page:"
	revalidatedPrefix = "revalidated:"
	scanBatch         = 100
)

// PageKey is the cache key of a rendered fragment that depends on tag.
func PageKey(tag, name string) string {
	return pagePrefix + tag + ":" + name
}

// TagRevalidator drops every cached page under a tag.
type TagRevalidator struct{}

func NewTagRevalidator() *TagRevalidator {
	return &TagRevalidator{}
}

// Revalidate deletes all keys of tag and records when it happened.
func (TagRevalidator) Revalidate(ctx context.Context, tag string) error {
	c := GetClient()
	pattern := pagePrefix + tag + ":*"

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete %s: %w", pattern, err)
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if err := c.Set(ctx, revalidatedPrefix+tag, time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return err
	}
	log.Debugf("[Cache] Revalidated %s (%d keys)", tag, removed)
	return nil
}

// LastRevalidated returns when tag was last revalidated.
func LastRevalidated(tag string) (time.Time, error) {
	raw, err := Get(revalidatedPrefix + tag)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}
