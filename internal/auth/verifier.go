package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heylo/heylo/internal/model"
)

// Common verification errors.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// maxUIDLength mirrors the identity provider's limit on subject length.
const maxUIDLength = 128

// Identity is the outcome of a successful verification.
type Identity struct {
	Principal *model.Principal
	ExpiresAt time.Time
}

// Verifier checks a bearer token and yields the identity it asserts.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Claims is the ID token payload understood by the service.
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

// identity converts validated claims into an Identity.
func (c *Claims) identity() (*Identity, error) {
	if c.Subject == "" || len(c.Subject) > maxUIDLength {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	id := &Identity{
		Principal: &model.Principal{
			UID:           c.Subject,
			Email:         c.Email,
			DisplayName:   c.Name,
			PhotoURL:      c.Picture,
			EmailVerified: c.EmailVerified,
		},
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}

// parseClaims runs parser over token and normalizes every failure to ErrInvalidToken.
func parseClaims(parser *jwt.Parser, token string, keyFunc jwt.Keyfunc) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims.identity()
}
