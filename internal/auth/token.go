package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no auth token configured")
	ErrTokenExpired = errors.New("auth token expired")
)

// TokenSource resolves the contributor's bearer token from an explicit
// value or a token file. The file is re-read on every lookup so an external
// sign-in tool can refresh it.
type TokenSource struct {
	token string
	path  string
	now   func() time.Time
}

func NewTokenSource(token, path string) *TokenSource {
	return &TokenSource{
		token: strings.TrimSpace(token),
		path:  path,
		now:   time.Now,
	}
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token := s.token
	if token == "" && s.path != "" {
		raw, err := os.ReadFile(s.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", ErrNoToken
			}
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}

	if token == "" {
		return "", ErrNoToken
	}

	if expired, ok := s.expired(token); ok && expired {
		return "", ErrTokenExpired
	}

	return token, nil
}

// expired peeks at the exp claim of JWT-shaped tokens without verifying the
// signature. Opaque tokens report ok=false.
func (s *TokenSource) expired(token string) (expired bool, ok bool) {
	if strings.Count(token, ".") != 2 {
		return false, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, false
	}
	if claims.ExpiresAt == nil {
		return false, true
	}
	return !s.now().Before(claims.ExpiresAt.Time), true
}
