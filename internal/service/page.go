package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heylo/heylo/internal/metrics"
	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/repository"
)

// maxMutationAttempts bounds re-reads after optimistic concurrency conflicts.
const maxMutationAttempts = 3

// errUnchanged lets a mutation report that no write is needed.
var errUnchanged = errors.New("page unchanged")

// PageService manages link-in-bio pages owned by accounts.
type PageService struct {
	pages    PageStore
	accounts *AccountService
	cache    PageCache
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewPageService creates a new PageService. pageCache may be nil.
func NewPageService(pages PageStore, accounts *AccountService, pageCache PageCache, recorder metrics.Recorder, logger *slog.Logger) *PageService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PageService{
		pages:    pages,
		accounts: accounts,
		cache:    pageCache,
		metrics:  recorder,
		logger:   logger.With("component", "page_service"),
	}
}

// CreatePage claims input.Name for the principal and stores the page.
// The account's page name and the page itself are written together.
func (s *PageService) CreatePage(ctx context.Context, p *model.Principal, input CreatePageInput) (*model.Account, *model.Page, error) {
	if p == nil || p.UID == "" {
		return nil, nil, errUnauthenticated
	}

	submitted := strings.TrimSpace(input.Name)
	input.Name = NormalizeName(input.Name)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	for i := range input.Links {
		input.Links[i] = trimLink(input.Links[i])
	}
	if err := validate(input); err != nil {
		return nil, nil, err
	}

	exists, err := s.pages.NameExists(ctx, input.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check name: %w", err)
	}
	if exists {
		return nil, nil, errPageNameTaken
	}

	account, err := s.accounts.Ensure(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	if account.HasPage() {
		return nil, nil, errOnePagePerUser
	}

	links := make([]model.LinkItem, 0, len(input.Links))
	for _, in := range input.Links {
		item, err := newLinkItem(in)
		if err != nil {
			return nil, nil, err
		}
		links = append(links, item)
	}

	displayName := input.DisplayName
	if displayName == "" {
		displayName = submitted
	}

	now := time.Now().UTC()
	page := &model.Page{
		ID:          generateULID(),
		Name:        input.Name,
		Type:        model.PageTypePage,
		DisplayName: displayName,
		OwnerUID:    p.UID,
		Links:       links,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.pages.CreatePageForAccount(ctx, p.UID, page); err != nil {
		switch {
		case errors.Is(err, repository.ErrNameTaken):
			return nil, nil, errPageNameTaken
		case errors.Is(err, repository.ErrPageAlreadyClaimed):
			return nil, nil, errOnePagePerUser
		default:
			return nil, nil, fmt.Errorf("failed to create page: %w", err)
		}
	}

	account.PageName = page.Name
	evict(ctx, s.cache, s.logger, page.Name)
	s.metrics.IncPageCreated()
	s.logger.Info("page created", "name", page.Name, "uid", p.UID)

	return account, page, nil
}

// GetOwnedPage returns the principal's page, or nil if there is none.
func (s *PageService) GetOwnedPage(ctx context.Context, p *model.Principal) (*model.Page, error) {
	account, err := s.accounts.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.pageOf(ctx, account)
}

// Init returns the principal's account and page; either may be nil.
func (s *PageService) Init(ctx context.Context, p *model.Principal) (*model.Account, *model.Page, error) {
	account, err := s.accounts.Get(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.pageOf(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return account, page, nil
}

func (s *PageService) pageOf(ctx context.Context, account *model.Account) (*model.Page, error) {
	if !account.HasPage() {
		return nil, nil
	}

	page, err := s.pages.GetPageByName(ctx, account.PageName)
	if err != nil {
		if errors.Is(err, repository.ErrPageNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

// AddLink appends a link with a fresh id.
func (s *PageService) AddLink(ctx context.Context, p *model.Principal, input LinkInput) (*model.Page, error) {
	input = trimLink(input)
	if err := validate(input); err != nil {
		return nil, err
	}

	return s.mutate(ctx, p, "add_link", func(page *model.Page) error {
		item, err := newLinkItem(input)
		if err != nil {
			return err
		}
		page.Links = append(page.Links, item)
		return nil
	})
}

// EditLink overwrites url, name and icon of the link with input.ID.
func (s *PageService) EditLink(ctx context.Context, p *model.Principal, input EditLinkInput) (*model.Page, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.LinkInput = trimLink(input.LinkInput)
	if err := validate(input); err != nil {
		return nil, err
	}

	return s.mutate(ctx, p, "edit_link", func(page *model.Page) error {
		idx := page.LinkIndex(input.ID)
		if idx < 0 {
			return errLinkNotFound
		}
		page.Links[idx].URL = input.URL
		page.Links[idx].Name = input.Name
		page.Links[idx].Icon = input.Icon
		return nil
	})
}

// DeleteLink removes the link with id, preserving the order of the rest.
func (s *PageService) DeleteLink(ctx context.Context, p *model.Principal, id string) (*model.Page, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("id: cannot be blank.")
	}

	return s.mutate(ctx, p, "delete_link", func(page *model.Page) error {
		idx := page.LinkIndex(id)
		if idx < 0 {
			return errLinkNotFound
		}
		links := make([]model.LinkItem, 0, len(page.Links)-1)
		links = append(links, page.Links[:idx]...)
		page.Links = append(links, page.Links[idx+1:]...)
		return nil
	})
}

// ReorderLink moves the link with input.ID to input.ToIndex. An unknown id
// leaves the page untouched.
func (s *PageService) ReorderLink(ctx context.Context, p *model.Principal, input ReorderLinkInput) (*model.Page, error) {
	input.ID = strings.TrimSpace(input.ID)
	if err := validate(input); err != nil {
		return nil, err
	}

	return s.mutate(ctx, p, "reorder_link", func(page *model.Page) error {
		links, moved := moveLink(page.Links, input.ID, *input.ToIndex)
		if !moved {
			return errUnchanged
		}
		page.Links = links
		return nil
	})
}

// SetDisplayName replaces the page's display text.
func (s *PageService) SetDisplayName(ctx context.Context, p *model.Principal, displayName string) (*model.Page, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, invalid("displayName: cannot be blank.")
	}
	if len(displayName) > maxTextLength {
		return nil, invalid(fmt.Sprintf("displayName: the length must be no more than %d.", maxTextLength))
	}

	return s.mutate(ctx, p, "display_name", func(page *model.Page) error {
		page.DisplayName = displayName
		return nil
	})
}

// SetTheme writes a single theme attribute, creating the theme on first use.
func (s *PageService) SetTheme(ctx context.Context, p *model.Principal, input SetThemeInput) (*model.Page, error) {
	input.Value = strings.TrimSpace(input.Value)
	if err := validate(input); err != nil {
		return nil, err
	}

	return s.mutate(ctx, p, "theme_"+string(input.Field), func(page *model.Page) error {
		if page.Theme == nil {
			page.Theme = &model.Theme{}
		}
		if !page.Theme.Set(input.Field, input.Value) {
			return invalid("field: unknown theme field")
		}
		return nil
	})
}

// mutate loads the principal's page, applies fn and writes it back guarded
// by the page version. On a concurrent write the whole cycle is repeated.
func (s *PageService) mutate(ctx context.Context, p *model.Principal, op string, fn func(page *model.Page) error) (*model.Page, error) {
	for attempt := 1; attempt <= maxMutationAttempts; attempt++ {
		page, err := s.ownedPage(ctx, p)
		if err != nil {
			return nil, err
		}

		if err := fn(page); err != nil {
			if errors.Is(err, errUnchanged) {
				return page, nil
			}
			return nil, err
		}

		err = s.pages.UpdatePage(ctx, page)
		if err == nil {
			evict(ctx, s.cache, s.logger, page.Name)
			s.metrics.IncPageUpdated(op)
			return page, nil
		}

		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			s.metrics.IncPageVersionConflict()
			s.logger.Debug("page version conflict", "name", page.Name, "op", op, "attempt", attempt)
		case errors.Is(err, repository.ErrPageNotFound):
			return nil, errPageRequired
		default:
			return nil, fmt.Errorf("failed to update page: %w", err)
		}
	}

	return nil, errBusy
}

// ownedPage loads the principal's page from the store for writing.
func (s *PageService) ownedPage(ctx context.Context, p *model.Principal) (*model.Page, error) {
	account, err := s.accounts.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if !account.HasPage() {
		return nil, errPageRequired
	}

	page, err := s.pages.GetPageByName(ctx, account.PageName)
	if err != nil {
		if errors.Is(err, repository.ErrPageNotFound) {
			return nil, errPageRequired
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	if !page.IsOwnedBy(p.UID) {
		return nil, errNotOwner
	}
	return page, nil
}

// moveLink extracts the link with id and re-inserts it at to, clamped to
// the bounds of the remaining list. Reports false when id is absent.
func moveLink(links []model.LinkItem, id string, to int) ([]model.LinkItem, bool) {
	idx := -1
	for i := range links {
		if links[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return links, false
	}

	item := links[idx]
	rest := make([]model.LinkItem, 0, len(links))
	rest = append(rest, links[:idx]...)
	rest = append(rest, links[idx+1:]...)

	if to < 0 {
		to = 0
	}
	if to > len(rest) {
		to = len(rest)
	}

	out := make([]model.LinkItem, 0, len(links))
	out = append(out, rest[:to]...)
	out = append(out, item)
	out = append(out, rest[to:]...)
	return out, true
}

func newLinkItem(in LinkInput) (model.LinkItem, error) {
	id, err := newLinkID()
	if err != nil {
		return model.LinkItem{}, fmt.Errorf("failed to generate link id: %w", err)
	}
	return model.LinkItem{ID: id, URL: in.URL, Name: in.Name, Icon: in.Icon}, nil
}

func trimLink(in LinkInput) LinkInput {
	return LinkInput{
		URL:  strings.TrimSpace(in.URL),
		Name: strings.TrimSpace(in.Name),
		Icon: strings.TrimSpace(in.Icon),
	}
}
