package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heylo/heylo/internal/cache"
	"github.com/heylo/heylo/internal/metrics"
	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/repository"
)

// ShortlinkService allocates names and resolves them to documents.
type ShortlinkService struct {
	pages   PageStore
	cache   PageCache
	clicks  ClickSink
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewShortlinkService creates a new ShortlinkService. pageCache may be nil.
func NewShortlinkService(pages PageStore, pageCache PageCache, clicks ClickSink, recorder metrics.Recorder, logger *slog.Logger) *ShortlinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ShortlinkService{
		pages:   pages,
		cache:   pageCache,
		clicks:  clicks,
		metrics: recorder,
		logger:  logger.With("component", "shortlink_service"),
	}
}

// Create stores a new shortlink. A custom name is used verbatim after
// normalization; otherwise a random slug is allocated.
func (s *ShortlinkService) Create(ctx context.Context, input CreateShortlinkInput) (*model.Page, error) {
	input.Name = NormalizeName(input.Name)
	input.URL = strings.TrimSpace(input.URL)
	if err := validate(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	link := &model.Page{
		ID:        generateULID(),
		Type:      model.PageTypeShortlink,
		URL:       input.URL,
		OwnerUID:  input.OwnerUID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	if input.Name != "" {
		err = s.createCustom(ctx, link, input.Name)
	} else {
		err = s.createRandom(ctx, link)
	}
	if err != nil {
		return nil, err
	}

	// A previous miss may have been cached for this name.
	evict(ctx, s.cache, s.logger, link.Name)
	s.metrics.IncShortlinkCreated()

	return link, nil
}

func (s *ShortlinkService) createCustom(ctx context.Context, link *model.Page, name string) error {
	exists, err := s.pages.NameExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check name: %w", err)
	}
	if exists {
		return errNameInUse
	}

	link.Name = name
	if err := s.pages.CreatePage(ctx, link); err != nil {
		if errors.Is(err, repository.ErrNameTaken) {
			return errNameInUse
		}
		return fmt.Errorf("failed to create shortlink: %w", err)
	}
	return nil
}

// createRandom retries with a fresh slug when the insert collides.
func (s *ShortlinkService) createRandom(ctx context.Context, link *model.Page) error {
	for attempt := 0; attempt < maxSlugRetries; attempt++ {
		slug, err := newSlug()
		if err != nil {
			return fmt.Errorf("failed to generate slug: %w", err)
		}
		if IsReservedName(slug) {
			continue
		}

		link.Name = slug
		err = s.pages.CreatePage(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrNameTaken) {
			return fmt.Errorf("failed to create shortlink: %w", err)
		}
		s.logger.Debug("random slug collided", "slug", slug, "attempt", attempt+1)
	}
	return errSlugExhausted
}

// Resolve returns the document stored under name and records one hit.
// This is the hot path - cache-first lookup.
func (s *ShortlinkService) Resolve(ctx context.Context, name string) (*model.Page, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveResolveDuration(time.Since(start))
	}()

	name = NormalizeName(name)
	if name == "" || !namePattern.MatchString(name) {
		return nil, errNotFound
	}

	page, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := s.clicks.Hit(ctx, name); err != nil {
		s.logger.Warn("failed to record hit", "name", name, "error", err)
	}

	return page, nil
}

// TrackLinkClick records a click on one of the links listed by page name.
func (s *ShortlinkService) TrackLinkClick(ctx context.Context, name string, input TrackClickInput) error {
	input.URL = strings.TrimSpace(input.URL)
	input.Name = strings.TrimSpace(input.Name)
	if err := validate(input); err != nil {
		return err
	}

	name = NormalizeName(name)
	if name == "" || !namePattern.MatchString(name) {
		return errNotFound
	}

	page, err := s.lookup(ctx, name)
	if err != nil {
		return err
	}
	if page.Type != model.PageTypePage || !page.HasLink(input.URL, input.Name) {
		return errLinkNotFound
	}

	if err := s.clicks.LinkClick(ctx, name, input.URL, input.Name); err != nil {
		return fmt.Errorf("failed to record link click: %w", err)
	}
	return nil
}

// lookup reads through the cache, backfilling it on a store hit and
// remembering misses.
func (s *ShortlinkService) lookup(ctx context.Context, name string) (*model.Page, error) {
	if s.cache != nil {
		cached, err := s.cache.GetPage(ctx, name)
		if err == nil {
			s.metrics.IncResolveCacheHit()
			return cached, nil
		}

		if errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.IncResolveCacheMiss()
			if negative, _ := s.cache.IsNegativelyCached(ctx, name); negative {
				return nil, errNotFound
			}
		} else {
			s.logger.Warn("page cache read failed", "name", name, "error", err)
		}
	}

	page, err := s.pages.GetPageByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrPageNotFound) {
			if s.cache != nil {
				_ = s.cache.SetNegativeCache(ctx, name)
			}
			return nil, errNotFound
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetPage(ctx, page); err != nil {
			s.logger.Warn("page cache write failed", "name", name, "error", err)
		}
	}

	return page, nil
}

// evict drops a cached document after a write. Failures only cost freshness.
func evict(ctx context.Context, pageCache PageCache, logger *slog.Logger, name string) {
	if pageCache == nil || name == "" {
		return
	}
	if err := pageCache.DeletePage(ctx, name); err != nil {
		logger.Warn("page cache eviction failed", "name", name, "error", err)
	}
}
