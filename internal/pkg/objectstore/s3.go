package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

// S3Store keeps objects in an S3 compatible bucket.
type S3Store struct {
	client *s3.Client
	cfg    *Config
}

// NewS3Store creates the client and makes sure the bucket is reachable
func NewS3Store(ctx context.Context, cfg *Config) (*S3Store, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services like Backblaze B2 or MinIO need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	store := &S3Store{client: client, cfg: cfg}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[ObjectStore] Initialized S3 store for bucket: %s", cfg.BucketName)
	return store, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.BucketName)})
	if err == nil {
		return nil
	}
	if !env.IsDev() {
		return fmt.Errorf("bucket %s not accessible: %w", s.cfg.BucketName, err)
	}

	log.Warnf("[ObjectStore] Bucket %s not found, attempting to create it", s.cfg.BucketName)
	input := &s3.CreateBucketInput{Bucket: aws.String(s.cfg.BucketName)}
	// us-east-1 and custom endpoints reject a LocationConstraint
	if s.cfg.EndpointURL == "" && s.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.cfg.Region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.cfg.BucketName, err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.BucketName),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"upload-source": "membergate",
		},
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Debugf("[ObjectStore] Uploaded s3://%s/%s", s.cfg.BucketName, key)
	return s.URL(key), nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// URL prefers S3_PUBLIC_URL (CDN), then the custom endpoint, then AWS virtual hosting.
func (s *S3Store) URL(key string) string {
	return publicURL(s.cfg, key)
}

func publicURL(cfg *Config, key string) string {
	key = strings.TrimLeft(key, "/")
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/") + "/" + key
	case cfg.EndpointURL != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(cfg.EndpointURL, "/"), cfg.BucketName, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.BucketName, cfg.Region, key)
}
