package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heylo/heylo/internal/model"
)

// Cache key prefixes and TTLs.
const (
	pageKeyPrefix     = "page:"
	negCacheKeySuffix = ":neg"

	// DefaultPageTTL is the TTL for cached page documents.
	DefaultPageTTL = time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// PageCache stores resolved documents by name.
type PageCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewPageCache creates a PageCache. A non-positive ttl selects DefaultPageTTL.
func NewPageCache(c *Cache, ttl time.Duration) *PageCache {
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}
	return &PageCache{cache: c, ttl: ttl}
}

func pageKey(name string) string {
	return pageKeyPrefix + name
}

// GetPage retrieves a cached document by name.
// Returns ErrCacheMiss if not found.
func (p *PageCache) GetPage(ctx context.Context, name string) (*model.Page, error) {
	data, err := p.cache.client.Get(ctx, pageKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var page model.Page
	if err := json.Unmarshal(data, &page); err != nil {
		// Corrupted entry - drop it and treat as miss
		p.cache.client.Del(ctx, pageKey(name))
		return nil, ErrCacheMiss
	}

	return &page, nil
}

// SetPage stores a document and clears any negative entry for its name.
func (p *PageCache) SetPage(ctx context.Context, page *model.Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}

	key := pageKey(page.Name)
	pipe := p.cache.client.Pipeline()
	pipe.Set(ctx, key, data, p.ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache page: %w", err)
	}

	return nil
}

// DeletePage removes both the positive and negative entries for name.
func (p *PageCache) DeletePage(ctx context.Context, name string) error {
	key := pageKey(name)

	if err := p.cache.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete page from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a name is in negative cache.
func (p *PageCache) IsNegativelyCached(ctx context.Context, name string) (bool, error) {
	exists, err := p.cache.client.Exists(ctx, pageKey(name)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a name as not found.
func (p *PageCache) SetNegativeCache(ctx context.Context, name string) error {
	err := p.cache.client.SetEx(ctx, pageKey(name)+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
