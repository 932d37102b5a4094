// Package auth verifies bearer tokens issued by the identity provider and
// carries the resulting principal through request contexts.
package auth

import (
	"context"

	"github.com/heylo/heylo/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// principalContextKey is the context key for storing the verified Principal.
	principalContextKey contextKey = "principal"
)

// ContextWithPrincipal adds the verified principal to the context.
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the principal from the context.
// Returns nil if not present.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok {
		return nil
	}
	return p
}

// UIDFromContext is a convenience function to get the caller uid from context.
// Returns empty string if not authenticated.
func UIDFromContext(ctx context.Context) string {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return ""
	}
	return p.UID
}
