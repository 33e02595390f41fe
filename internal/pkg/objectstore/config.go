package objectstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

// Config selects and configures the backend for uploaded files.
type Config struct {
	S3Enabled       bool   `env:"S3_ENABLED" envDefault:"false"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	BucketName      string `env:"S3_BUCKET_NAME"`
	EndpointURL     string `env:"S3_ENDPOINT_URL"` // Optional for S3-compatible services
	PublicURL       string `env:"S3_PUBLIC_URL"`
	LocalDir        string `env:"UPLOAD_DIR" envDefault:"uploads"`
	LocalURLPrefix  string `env:"UPLOAD_URL_PREFIX" envDefault:"/uploads"`
}

// LoadConfig loads the object store configuration from the environment
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required S3 fields when S3 is enabled
func (c *Config) Validate() error {
	if !c.S3Enabled {
		if c.LocalDir == "" {
			return errors.New("UPLOAD_DIR must not be empty")
		}
		return nil
	}
	if c.AccessKeyID == "" {
		return errors.New("S3_ACCESS_KEY_ID is required when S3 is enabled")
	}
	if c.SecretAccessKey == "" {
		return errors.New("S3_SECRET_ACCESS_KEY is required when S3 is enabled")
	}
	if c.BucketName == "" {
		return errors.New("S3_BUCKET_NAME is required when S3 is enabled")
	}
	return nil
}

// ObjectKey generates a key like listings/2026/10/<uuid>.jpg
func ObjectKey(prefix, ext string, now time.Time) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s/%04d/%02d/%s%s", strings.Trim(prefix, "/"), now.Year(), int(now.Month()), uuid.NewString(), strings.ToLower(ext))
}

// ThumbnailKey derives the thumbnail key stored next to the original.
func ThumbnailKey(objectKey, ext string) string {
	if i := strings.LastIndex(objectKey, "."); i > strings.LastIndex(objectKey, "/") {
		objectKey = objectKey[:i]
	}
	return objectKey + "_thumb" + ext
}

// ContentTypeForExt returns the MIME type based on file extension
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
