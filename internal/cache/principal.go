package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heylo/heylo/internal/model"
)

const (
	// principalCachePrefix is the Redis key prefix for verified tokens.
	principalCachePrefix = "auth:principal:"
	// DefaultPrincipalTTL bounds how long a verified token is trusted without re-verification.
	DefaultPrincipalTTL = 5 * time.Minute
)

// PrincipalCache remembers verified bearer tokens by fingerprint.
type PrincipalCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewPrincipalCache creates a PrincipalCache. A non-positive ttl selects DefaultPrincipalTTL.
func NewPrincipalCache(c *Cache, ttl time.Duration) *PrincipalCache {
	if ttl <= 0 {
		ttl = DefaultPrincipalTTL
	}
	return &PrincipalCache{cache: c, ttl: ttl}
}

// GetPrincipal retrieves a cached principal by token fingerprint.
// Returns nil if not found (cache miss).
func (p *PrincipalCache) GetPrincipal(ctx context.Context, fingerprint string) (*model.Principal, error) {
	data, err := p.cache.client.Get(ctx, principalCachePrefix+fingerprint).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var principal model.Principal
	if err := json.Unmarshal(data, &principal); err != nil || principal.UID == "" {
		return nil, nil //nolint:nilerr
	}

	return &principal, nil
}

// SetPrincipal caches a principal until the earlier of the cache TTL and expiresAt.
func (p *PrincipalCache) SetPrincipal(ctx context.Context, fingerprint string, principal *model.Principal, expiresAt time.Time) error {
	ttl := p.ttl
	if !expiresAt.IsZero() {
		remaining := time.Until(expiresAt)
		if remaining <= 0 {
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	data, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	return p.cache.client.Set(ctx, principalCachePrefix+fingerprint, data, ttl).Err()
}
