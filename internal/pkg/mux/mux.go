package mux

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

// Token audiences defined by Mux.
const (
	AudienceVideo      = "v"
	AudienceThumbnail  = "t"
	AudienceStoryboard = "s"
)

const (
	streamBase = "https://stream.mux.com"
	imageBase  = "https://image.mux.com"
)

var ErrNoPlaybackID = errors.New("mux: playback id is empty")

// Config holds the signing key. Without a key, public playback URLs are produced.
type Config struct {
	SigningKeyID  string        `env:"MUX_SIGNING_KEY_ID"`
	SigningKey    string        `env:"MUX_SIGNING_KEY"` // base64 encoded PEM as shown in the Mux dashboard
	TokenLifetime time.Duration `env:"MUX_TOKEN_LIFETIME" envDefault:"6h"`
}

// Signer builds playback and thumbnail URLs for lessons.
type Signer struct {
	keyID    string
	key      *rsa.PrivateKey
	lifetime time.Duration
	now      func() time.Time
}

// NewSigner parses the signing key when one is configured.
func NewSigner(cfg Config) (*Signer, error) {
	s := &Signer{keyID: cfg.SigningKeyID, lifetime: cfg.TokenLifetime, now: time.Now}
	if s.lifetime <= 0 {
		s.lifetime = 6 * time.Hour
	}
	if cfg.SigningKey == "" {
		return s, nil
	}
	if cfg.SigningKeyID == "" {
		return nil, errors.New("mux: MUX_SIGNING_KEY_ID is required with MUX_SIGNING_KEY")
	}

	pemBytes := []byte(cfg.SigningKey)
	if !strings.Contains(cfg.SigningKey, "BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.SigningKey))
		if err != nil {
			return nil, fmt.Errorf("mux: decode signing key: %w", err)
		}
		pemBytes = decoded
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("mux: parse signing key: %w", err)
	}
	s.key = key
	return s, nil
}

// FromEnv reads MUX_* variables.
func FromEnv() (*Signer, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return NewSigner(cfg)
}

// Signed reports whether URLs carry a token.
func (s *Signer) Signed() bool {
	return s.key != nil
}

// Token returns an RS256 JWT for one playback id and audience.
func (s *Signer) Token(playbackID, audience string) (string, error) {
	if playbackID == "" {
		return "", ErrNoPlaybackID
	}
	if s.key == nil {
		return "", errors.New("mux: no signing key configured")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub": playbackID,
		"aud": audience,
		"exp": now.Add(s.lifetime).Unix(),
		"kid": s.keyID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	return token.SignedString(s.key)
}

// PlaybackURL returns the HLS URL for the lesson video.
func (s *Signer) PlaybackURL(playbackID string) (string, error) {
	return s.url(streamBase+"/"+url.PathEscape(playbackID)+".m3u8", playbackID, AudienceVideo)
}

// ThumbnailURL returns the poster image for the lesson video.
func (s *Signer) ThumbnailURL(playbackID string) (string, error) {
	return s.url(imageBase+"/"+url.PathEscape(playbackID)+"/thumbnail.jpg", playbackID, AudienceThumbnail)
}

func (s *Signer) url(base, playbackID, audience string) (string, error) {
	if playbackID == "" {
		return "", ErrNoPlaybackID
	}
	if !s.Signed() {
		return base, nil
	}
	token, err := s.Token(playbackID, audience)
	if err != nil {
		return "", err
	}
	return base + "?token=" + url.QueryEscape(token), nil
}
