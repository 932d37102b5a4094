package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/repository"
)

// AnalyticsService counts resolutions and link clicks per name.
// It is also the synchronous ClickSink.
type AnalyticsService struct {
	store    AnalyticsStore
	accounts *AccountService
	now      func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(store AnalyticsStore, accounts *AccountService) *AnalyticsService {
	return &AnalyticsService{
		store:    store,
		accounts: accounts,
		now:      time.Now,
	}
}

// RecordHit increments the hit count for name, creating the record on first hit.
func (s *AnalyticsService) RecordHit(ctx context.Context, name string) (*model.AnalyticsRecord, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, invalid("name: cannot be blank.")
	}

	record, err := s.store.IncrementHit(ctx, name, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to record hit: %w", err)
	}
	return record, nil
}

// RecordLinkClick increments the breakdown entry for (linkName, linkURL) on
// pageName. The top-level count is left alone.
func (s *AnalyticsService) RecordLinkClick(ctx context.Context, pageName, linkURL, linkName string) (*model.AnalyticsRecord, error) {
	pageName = NormalizeName(pageName)
	if pageName == "" || linkURL == "" || linkName == "" {
		return nil, invalid("pageName, url and name are required")
	}

	record, err := s.store.IncrementLinkClick(ctx, pageName, linkName, linkURL, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to record link click: %w", err)
	}
	return record, nil
}

// Hit implements ClickSink.
func (s *AnalyticsService) Hit(ctx context.Context, name string) error {
	_, err := s.RecordHit(ctx, name)
	return err
}

// LinkClick implements ClickSink.
func (s *AnalyticsService) LinkClick(ctx context.Context, name, linkURL, linkName string) error {
	_, err := s.RecordLinkClick(ctx, name, linkURL, linkName)
	return err
}

// ApplyClickEvent applies a queued event at most once.
func (s *AnalyticsService) ApplyClickEvent(ctx context.Context, event *model.ClickEvent) (bool, error) {
	return s.store.ApplyClickEvent(ctx, event)
}

// GetForPrincipal returns the analytics of the principal's page, or nil.
func (s *AnalyticsService) GetForPrincipal(ctx context.Context, p *model.Principal) (*model.AnalyticsRecord, error) {
	account, err := s.accounts.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if !account.HasPage() {
		return nil, nil
	}

	record, err := s.store.GetAnalytics(ctx, account.PageName)
	if err != nil {
		if errors.Is(err, repository.ErrAnalyticsNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return record, nil
}
