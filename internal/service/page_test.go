package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/heylo/heylo/internal/model"
)

func createTestPage(t *testing.T, s *testServices, p *model.Principal, name string, links ...LinkInput) *model.Page {
	t.Helper()
	_, page, err := s.pages.CreatePage(context.Background(), p, CreatePageInput{Name: name, Links: links})
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	return page
}

func linkNames(links []model.LinkItem) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPageService_CreatePage(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	p := principal("u1")

	account, page, err := s.pages.CreatePage(ctx, p, CreatePageInput{
		Name:  " Alice ",
		Links: []LinkInput{{URL: "github.com/alice", Name: "GitHub"}},
	})
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}

	if page.Name != "alice" {
		t.Errorf("name = %q, want alice", page.Name)
	}
	if page.DisplayName != "Alice" {
		t.Errorf("displayName = %q, want the submitted name Alice", page.DisplayName)
	}
	if page.OwnerUID != "u1" || page.Type != model.PageTypePage {
		t.Errorf("unexpected page: %+v", page)
	}
	if len(page.Links) != 1 || len(page.Links[0].ID) != linkIDLength {
		t.Errorf("unexpected links: %+v", page.Links)
	}
	if account.PageName != "alice" {
		t.Errorf("account pageName = %q, want alice", account.PageName)
	}

	stored, err := s.store.GetAccountByUID(ctx, "u1")
	if err != nil || stored.PageName != "alice" {
		t.Fatalf("stored account = %+v, err = %v", stored, err)
	}
}

func TestPageService_CreatePageDisplayName(t *testing.T) {
	tests := []struct {
		name        string
		input       CreatePageInput
		wantName    string
		wantDisplay string
	}{
		{"defaults to submitted casing", CreatePageInput{Name: "MixedCase"}, "mixedcase", "MixedCase"},
		{"blank display name falls back", CreatePageInput{Name: "Bob", DisplayName: "   "}, "bob", "Bob"},
		{"explicit display name wins", CreatePageInput{Name: "carol", DisplayName: " Carol C. "}, "carol", "Carol C."},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServices()
			_, page, err := s.pages.CreatePage(context.Background(), principal(fmt.Sprintf("u%d", i)), tt.input)
			if err != nil {
				t.Fatalf("CreatePage() error = %v", err)
			}
			if page.Name != tt.wantName || page.DisplayName != tt.wantDisplay {
				t.Errorf("got name %q display %q, want %q %q", page.Name, page.DisplayName, tt.wantName, tt.wantDisplay)
			}
		})
	}
}

func TestPageService_CreatePageConflicts(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	createTestPage(t, s, principal("u1"), "alice")

	_, _, err := s.pages.CreatePage(ctx, principal("u2"), CreatePageInput{Name: "ALICE"})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Message != msgPageNameTaken {
		t.Errorf("expected name taken, got %v", err)
	}

	_, _, err = s.pages.CreatePage(ctx, principal("u1"), CreatePageInput{Name: "bob"})
	if !errors.As(err, &svcErr) || svcErr.Message != msgOnePagePerUser {
		t.Errorf("expected one page per account, got %v", err)
	}
	if exists, _ := s.store.NameExists(ctx, "bob"); exists {
		t.Error("second page must not be stored")
	}

	if _, err := s.links.Create(ctx, CreateShortlinkInput{Name: "carol", URL: "example.com"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, _, err = s.pages.CreatePage(ctx, principal("u3"), CreatePageInput{Name: "carol"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict with shortlink name, got %v", err)
	}
}

func TestPageService_CreatePageRequiresPrincipal(t *testing.T) {
	s := newTestServices()
	_, _, err := s.pages.CreatePage(context.Background(), nil, CreatePageInput{Name: "alice"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestPageService_LinkOpsRequirePage(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	p := principal("u1")

	_, err := s.pages.AddLink(ctx, p, LinkInput{URL: "example.com", Name: "x"})
	if !errors.Is(err, ErrPrecondition) {
		t.Errorf("AddLink: expected precondition error, got %v", err)
	}
	_, err = s.pages.SetDisplayName(ctx, p, "Hello")
	if !errors.Is(err, ErrPrecondition) {
		t.Errorf("SetDisplayName: expected precondition error, got %v", err)
	}
}

func TestPageService_AddEditDeleteLink(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	p := principal("u1")
	createTestPage(t, s, p, "alice")

	page, err := s.pages.AddLink(ctx, p, LinkInput{URL: "github.com/alice", Name: "GitHub", Icon: "gh"})
	if err != nil {
		t.Fatalf("AddLink() error = %v", err)
	}
	if len(page.Links) != 1 {
		t.Fatalf("links = %d, want 1", len(page.Links))
	}
	id := page.Links[0].ID

	page, err = s.pages.EditLink(ctx, p, EditLinkInput{ID: id, LinkInput: LinkInput{URL: "gitlab.com/alice", Name: "GitLab"}})
	if err != nil {
		t.Fatalf("EditLink() error = %v", err)
	}
	if got := page.Links[0]; got.ID != id || got.URL != "gitlab.com/alice" || got.Name != "GitLab" || got.Icon != "" {
		t.Errorf("unexpected edited link: %+v", got)
	}

	_, err = s.pages.EditLink(ctx, p, EditLinkInput{ID: "nope", LinkInput: LinkInput{URL: "example.com", Name: "x"}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("EditLink unknown id: expected not found, got %v", err)
	}

	_, err = s.pages.DeleteLink(ctx, p, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteLink unknown id: expected not found, got %v", err)
	}

	page, err = s.pages.DeleteLink(ctx, p, id)
	if err != nil {
		t.Fatalf("DeleteLink() error = %v", err)
	}
	if len(page.Links) != 0 {
		t.Errorf("links = %d, want 0", len(page.Links))
	}

	if got := s.recorder.Snapshot().PageUpdates["add_link"]; got != 1 {
		t.Errorf("add_link updates = %d, want 1", got)
	}
	if len(s.cache.deletes) == 0 {
		t.Error("expected cache eviction after writes")
	}
}

func TestPageService_ReorderLink(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	p := principal("u1")
	page := createTestPage(t, s, p, "alice",
		LinkInput{URL: "a.com", Name: "A"},
		LinkInput{URL: "b.com", Name: "B"},
		LinkInput{URL: "c.com", Name: "C"},
	)
	b := page.Links[1].ID

	page, err := s.pages.ReorderLink(ctx, p, ReorderLinkInput{ID: b, FromIndex: intPtr(1), ToIndex: intPtr(0)})
	if err != nil {
		t.Fatalf("ReorderLink() error = %v", err)
	}
	if got := linkNames(page.Links); !equalStrings(got, []string{"B", "A", "C"}) {
		t.Errorf("order = %v, want [B A C]", got)
	}

	updates := s.store.Updates
	page, err = s.pages.ReorderLink(ctx, p, ReorderLinkInput{ID: "missing", FromIndex: intPtr(0), ToIndex: intPtr(2)})
	if err != nil {
		t.Fatalf("ReorderLink() unknown id error = %v", err)
	}
	if got := linkNames(page.Links); !equalStrings(got, []string{"B", "A", "C"}) {
		t.Errorf("order after no-op = %v", got)
	}
	if s.store.Updates != updates {
		t.Error("unknown id must not write")
	}

	_, err = s.pages.ReorderLink(ctx, p, ReorderLinkInput{ID: b, FromIndex: intPtr(0)})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("missing toIndex: expected validation error, got %v", err)
	}
}

func TestMoveLink(t *testing.T) {
	links := []model.LinkItem{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}

	tests := []struct {
		name string
		id   string
		to   int
		want []string
		ok   bool
	}{
		{"to front", "b", 0, []string{"B", "A", "C"}, true},
		{"to end", "a", 2, []string{"B", "C", "A"}, true},
		{"same place", "b", 1, []string{"A", "B", "C"}, true},
		{"negative clamps", "c", -5, []string{"C", "A", "B"}, true},
		{"past end appends", "a", 10, []string{"B", "C", "A"}, true},
		{"unknown id", "z", 0, []string{"A", "B", "C"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := moveLink(links, tt.id, tt.to)
			if ok != tt.ok {
				t.Errorf("ok = %v, want %v", ok, tt.ok)
			}
			if names := linkNames(got); !equalStrings(names, tt.want) {
				t.Errorf("order = %v, want %v", names, tt.want)
			}
		})
	}

	if names := linkNames(links); !equalStrings(names, []string{"A", "B", "C"}) {
		t.Errorf("input slice modified: %v", names)
	}
}

func TestPageService_SetTheme(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	p := principal("u1")
	createTestPage(t, s, p, "alice")

	page, err := s.pages.SetTheme(ctx, p, SetThemeInput{Field: model.ThemeButtonColor, Value: "#ff0000"})
	if err != nil {
		t.Fatalf("SetTheme() error = %v", err)
	}
	page, err = s.pages.SetTheme(ctx, p, SetThemeInput{Field: model.ThemeCoverPicture, Value: "https://img/cover.png"})
	if err != nil {
		t.Fatalf("SetTheme() error = %v", err)
	}

	want := model.Theme{ButtonColor: "#ff0000", CoverPicture: "https://img/cover.png"}
	if page.Theme == nil || *page.Theme != want {
		t.Errorf("theme = %+v, want %+v", page.Theme, want)
	}

	_, err = s.pages.SetTheme(ctx, p, SetThemeInput{Field: "fontsize", Value: "12"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown field: expected validation error, got %v", err)
	}
}

func TestPageService_SetDisplayName(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	p := principal("u1")
	createTestPage(t, s, p, "alice")

	page, err := s.pages.SetDisplayName(ctx, p, "  Alice Liddell ")
	if err != nil {
		t.Fatalf("SetDisplayName() error = %v", err)
	}
	if page.DisplayName != "Alice Liddell" {
		t.Errorf("displayName = %q", page.DisplayName)
	}

	if _, err := s.pages.SetDisplayName(ctx, p, "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank: expected validation error, got %v", err)
	}
}

func TestPageService_ForeignPageIsForbidden(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	owner := principal("owner")
	createTestPage(t, s, owner, "alice", LinkInput{URL: "a.com", Name: "A"})

	// An account that points at a page it does not own.
	intruder := principal("intruder")
	if err := s.store.CreateAccount(ctx, &model.Account{ID: "x", UID: "intruder", PageName: "alice"}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	_, err := s.pages.AddLink(ctx, intruder, LinkInput{URL: "evil.com", Name: "Evil"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	page, err := s.store.GetPageByName(ctx, "alice")
	if err != nil {
		t.Fatalf("GetPageByName() error = %v", err)
	}
	if got := linkNames(page.Links); !equalStrings(got, []string{"A"}) {
		t.Errorf("page modified: %v", got)
	}
}

func TestPageService_RetriesVersionConflicts(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	p := principal("u1")
	createTestPage(t, s, p, "alice")

	s.store.ConflictsLeft = maxMutationAttempts - 1
	page, err := s.pages.AddLink(ctx, p, LinkInput{URL: "a.com", Name: "A"})
	if err != nil {
		t.Fatalf("AddLink() error = %v", err)
	}
	if len(page.Links) != 1 {
		t.Errorf("links = %d, want 1", len(page.Links))
	}
	if got := s.recorder.Snapshot().PageVersionConflicts; got != maxMutationAttempts-1 {
		t.Errorf("conflicts = %d, want %d", got, maxMutationAttempts-1)
	}

	s.store.ConflictsLeft = maxMutationAttempts
	_, err = s.pages.AddLink(ctx, p, LinkInput{URL: "b.com", Name: "B"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict after exhausting retries, got %v", err)
	}
}

func TestPageService_Init(t *testing.T) {
	s := newTestServices()
	ctx := context.Background()
	p := principal("u1")

	account, page, err := s.pages.Init(ctx, p)
	if err != nil || account != nil || page != nil {
		t.Fatalf("Init() before signup = %v, %v, %v", account, page, err)
	}

	createTestPage(t, s, p, "alice")
	account, page, err = s.pages.Init(ctx, p)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if account == nil || page == nil || page.Name != account.PageName {
		t.Errorf("unexpected init result: %+v %+v", account, page)
	}
}
