// Package memstore is an in-memory stand-in for the Postgres repository,
// used by service and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/repository"
)

// Store holds pages, accounts and analytics behind one mutex.
type Store struct {
	mu        sync.Mutex
	pages     map[string]*model.Page
	accounts  map[string]*model.Account
	analytics map[string]*model.AnalyticsRecord
	events    map[string]struct{}

	// ConflictsLeft makes the next N UpdatePage calls fail with
	// ErrVersionConflict.
	ConflictsLeft int
	// Updates counts successful UpdatePage calls.
	Updates int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		pages:     make(map[string]*model.Page),
		accounts:  make(map[string]*model.Account),
		analytics: make(map[string]*model.AnalyticsRecord),
		events:    make(map[string]struct{}),
	}
}

func (s *Store) CreatePage(_ context.Context, page *model.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pages[page.Name]; ok {
		return repository.ErrNameTaken
	}
	s.pages[page.Name] = page.Clone()
	return nil
}

func (s *Store) GetPageByName(_ context.Context, name string) (*model.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[name]
	if !ok {
		return nil, repository.ErrPageNotFound
	}
	return page.Clone(), nil
}

func (s *Store) NameExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pages[name]
	return ok, nil
}

func (s *Store) CreatePageForAccount(_ context.Context, uid string, page *model.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[uid]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if account.PageName != "" {
		return repository.ErrPageAlreadyClaimed
	}
	if _, ok := s.pages[page.Name]; ok {
		return repository.ErrNameTaken
	}

	account.PageName = page.Name
	s.pages[page.Name] = page.Clone()
	return nil
}

func (s *Store) UpdatePage(_ context.Context, page *model.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.pages[page.Name]
	if !ok {
		return repository.ErrPageNotFound
	}
	if s.ConflictsLeft > 0 {
		s.ConflictsLeft--
		current.Version++
		return repository.ErrVersionConflict
	}
	if current.Version != page.Version {
		return repository.ErrVersionConflict
	}

	page.Version++
	page.UpdatedAt = time.Now().UTC()
	s.pages[page.Name] = page.Clone()
	s.Updates++
	return nil
}

func (s *Store) CreateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.UID]; ok {
		return repository.ErrAccountExists
	}
	cp := *account
	s.accounts[account.UID] = &cp
	return nil
}

func (s *Store) GetAccountByUID(_ context.Context, uid string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[uid]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *Store) UpdateAccountProfile(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[account.UID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	current.DisplayName = account.DisplayName
	current.PhotoURL = account.PhotoURL
	current.UpdatedAt = time.Now().UTC()
	account.UpdatedAt = current.UpdatedAt
	return nil
}

func (s *Store) IncrementHit(_ context.Context, name string, at time.Time) (*model.AnalyticsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.record(name)
	record.Count++
	touch(&record.LastClickedAt, at)
	return copyRecord(record), nil
}

func (s *Store) IncrementLinkClick(_ context.Context, name, linkName, linkURL string, at time.Time) (*model.AnalyticsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.linkClick(name, linkName, linkURL, at)
	return copyRecord(s.analytics[name]), nil
}

func (s *Store) ApplyClickEvent(_ context.Context, event *model.ClickEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.EventID]; ok {
		return false, nil
	}
	s.events[event.EventID] = struct{}{}

	switch event.Kind {
	case model.ClickKindLink:
		s.linkClick(event.Name, event.LinkName, event.LinkURL, event.ClickedAt)
	default:
		record := s.record(event.Name)
		record.Count++
		touch(&record.LastClickedAt, event.ClickedAt)
	}
	return true, nil
}

func (s *Store) GetAnalytics(_ context.Context, name string) (*model.AnalyticsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.analytics[name]
	if !ok {
		return nil, repository.ErrAnalyticsNotFound
	}
	return copyRecord(record), nil
}

// PageNames returns every stored name in sorted order.
func (s *Store) PageNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.pages))
	for name := range s.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) record(name string) *model.AnalyticsRecord {
	record, ok := s.analytics[name]
	if !ok {
		record = &model.AnalyticsRecord{Name: name}
		s.analytics[name] = record
	}
	return record
}

func (s *Store) linkClick(name, linkName, linkURL string, at time.Time) {
	record := s.record(name)
	for i := range record.Links {
		if record.Links[i].Name == linkName && record.Links[i].URL == linkURL {
			record.Links[i].Count++
			if at.After(record.Links[i].LastClickedAt) {
				record.Links[i].LastClickedAt = at
			}
			return
		}
	}
	record.Links = append(record.Links, model.LinkStats{Name: linkName, URL: linkURL, Count: 1, LastClickedAt: at})
}

func touch(dst **time.Time, at time.Time) {
	if *dst == nil || at.After(**dst) {
		t := at
		*dst = &t
	}
}

func copyRecord(r *model.AnalyticsRecord) *model.AnalyticsRecord {
	cp := *r
	cp.Links = append([]model.LinkStats(nil), r.Links...)
	return &cp
}
