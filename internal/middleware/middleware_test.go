package middleware

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/heylo/heylo/internal/cache"
	"github.com/heylo/heylo/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLimiter struct {
	mu        sync.Mutex
	counts    map[string]int64
	ipAllowed bool
	err       error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: make(map[string]int64), ipAllowed: true}
}

func (f *fakeLimiter) CheckIPRateLimit(context.Context, string, int, int) (*cache.RateLimitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.ipAllowed {
		return &cache.RateLimitResult{Allowed: true}, nil
	}
	return &cache.RateLimitResult{Allowed: false, RetryAfter: 2 * time.Second}, nil
}

func (f *fakeLimiter) CheckQuota(_ context.Context, scope, identity string, limit int, window time.Duration) (*cache.RateLimitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	count := f.CountRequest(context.Background(), scope, identity, window)
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	result := &cache.RateLimitResult{
		Allowed:   count <= int64(limit),
		Limit:     int64(limit),
		Remaining: remaining,
		ResetAt:   time.Now().Add(window),
	}
	if !result.Allowed {
		result.RetryAfter = window
	}
	return result, nil
}

func (f *fakeLimiter) CountRequest(_ context.Context, scope, identity string, _ time.Duration) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope+"|"+identity]++
	return f.counts[scope+"|"+identity]
}

type fakePrincipalCache struct {
	mu      sync.Mutex
	entries map[string]*model.Principal
}

func newFakePrincipalCache() *fakePrincipalCache {
	return &fakePrincipalCache{entries: make(map[string]*model.Principal)}
}

func (c *fakePrincipalCache) GetPrincipal(_ context.Context, fp string) (*model.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[fp], nil
}

func (c *fakePrincipalCache) SetPrincipal(_ context.Context, fp string, p *model.Principal, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fp] = p
	return nil
}
