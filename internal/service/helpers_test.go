package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/heylo/heylo/internal/cache"
	"github.com/heylo/heylo/internal/metrics"
	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/testutil/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePageCache struct {
	mu       sync.Mutex
	pages    map[string]*model.Page
	negative map[string]bool
	deletes  []string
}

func newFakePageCache() *fakePageCache {
	return &fakePageCache{
		pages:    make(map[string]*model.Page),
		negative: make(map[string]bool),
	}
}

func (c *fakePageCache) GetPage(_ context.Context, name string) (*model.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.pages[name]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return page.Clone(), nil
}

func (c *fakePageCache) SetPage(_ context.Context, page *model.Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[page.Name] = page.Clone()
	delete(c.negative, page.Name)
	return nil
}

func (c *fakePageCache) DeletePage(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, name)
	delete(c.negative, name)
	c.deletes = append(c.deletes, name)
	return nil
}

func (c *fakePageCache) IsNegativelyCached(_ context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negative[name], nil
}

func (c *fakePageCache) SetNegativeCache(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[name] = true
	return nil
}

type testServices struct {
	store     *memstore.Store
	cache     *fakePageCache
	recorder  *metrics.InMemoryRecorder
	accounts  *AccountService
	pages     *PageService
	analytics *AnalyticsService
	links     *ShortlinkService
}

func newTestServices() *testServices {
	store := memstore.New()
	pageCache := newFakePageCache()
	recorder := metrics.NewInMemory()
	logger := discardLogger()

	accounts := NewAccountService(store, logger)
	analytics := NewAnalyticsService(store, accounts)
	return &testServices{
		store:     store,
		cache:     pageCache,
		recorder:  recorder,
		accounts:  accounts,
		pages:     NewPageService(store, accounts, pageCache, recorder, logger),
		analytics: analytics,
		links:     NewShortlinkService(store, pageCache, analytics, recorder, logger),
	}
}

func principal(uid string) *model.Principal {
	return &model.Principal{UID: uid, Email: uid + "@example.com", DisplayName: uid}
}

func intPtr(v int) *int { return &v }
