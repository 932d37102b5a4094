package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heylo/heylo/internal/model"
)

// DefaultDevIssuer is the issuer stamped on locally minted tokens.
const DefaultDevIssuer = "heylo-dev"

// HMACVerifier accepts HS256 tokens signed with a shared secret.
// Intended for local development and tests.
type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewHMACVerifier creates an HMACVerifier for the given secret and issuer.
func NewHMACVerifier(secret []byte, issuer string) (*HMACVerifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("hmac secret must be at least 32 bytes")
	}
	if issuer == "" {
		issuer = DefaultDevIssuer
	}

	return &HMACVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	return parseClaims(v.parser, token, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
}

// IssueHMACToken signs a token for p that the matching HMACVerifier accepts.
func IssueHMACToken(secret []byte, issuer string, p *model.Principal, ttl time.Duration) (string, error) {
	if issuer == "" {
		issuer = DefaultDevIssuer
	}
	now := time.Now()

	claims := Claims{
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Name:          p.DisplayName,
		Picture:       p.PhotoURL,
		AuthTime:      now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
