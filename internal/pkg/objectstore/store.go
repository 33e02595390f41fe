package objectstore

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

var ErrNotFound = errors.New("object not found")

// Store keeps uploaded files and knows their public URL.
type Store interface {
	// Put writes r under key and returns the public URL. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

var (
	defaultStore Store
	storeMu      sync.RWMutex
)

// New returns the S3 backend when enabled, the local directory otherwise.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if cfg.S3Enabled {
		return NewS3Store(ctx, cfg)
	}
	return NewLocalStore(cfg.LocalDir, cfg.LocalURLPrefix)
}

// Setup builds the process wide store from the environment.
func Setup(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	SetDefault(s)
	log.Infof("[ObjectStore] Using %T", s)
	return nil
}

// Default returns the configured store. Without Setup it falls back to ./uploads.
func Default() Store {
	storeMu.RLock()
	s := defaultStore
	storeMu.RUnlock()
	if s != nil {
		return s
	}
	storeMu.Lock()
	defer storeMu.Unlock()
	if defaultStore == nil {
		local, err := NewLocalStore("uploads", "/uploads")
		if err != nil {
			log.Errorf("[ObjectStore] Local fallback failed: %v", err)
			return nil
		}
		defaultStore = local
	}
	return defaultStore
}

// SetDefault replaces the process wide store.
func SetDefault(s Store) {
	storeMu.Lock()
	defaultStore = s
	storeMu.Unlock()
}
