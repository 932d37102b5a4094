package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/testutil"
)

func newTestRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return repo
}

func TestRepository_CreateAndGetShortlink(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	link := testutil.NewTestShortlink(t, "abc123")
	if err := repo.CreatePage(ctx, link); err != nil {
		t.Fatalf("create shortlink: %v", err)
	}

	got, err := repo.GetPageByName(ctx, "abc123")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if got.Type != model.PageTypeShortlink || got.URL != link.URL {
		t.Errorf("unexpected shortlink: %+v", got)
	}
	if got.Links != nil {
		t.Errorf("shortlink should have no links, got %v", got.Links)
	}

	dup := testutil.NewTestShortlink(t, "abc123")
	if err := repo.CreatePage(ctx, dup); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	if _, err := repo.GetPageByName(ctx, "missing"); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}

func TestRepository_CreatePageForAccount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	account := testutil.NewTestAccount(t, "uid-1")
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}

	page := testutil.NewTestPage(t, "alice", "uid-1")
	if err := repo.CreatePageForAccount(ctx, "uid-1", page); err != nil {
		t.Fatalf("create page: %v", err)
	}

	got, err := repo.GetAccountByUID(ctx, "uid-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.PageName != "alice" {
		t.Errorf("page name = %q, want alice", got.PageName)
	}

	second := testutil.NewTestPage(t, "alice2", "uid-1")
	if err := repo.CreatePageForAccount(ctx, "uid-1", second); !errors.Is(err, ErrPageAlreadyClaimed) {
		t.Fatalf("expected ErrPageAlreadyClaimed, got %v", err)
	}
	if exists, _ := repo.NameExists(ctx, "alice2"); exists {
		t.Error("second page must not be inserted")
	}
}

func TestRepository_CreatePageForAccount_RollsBackOnNameClash(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	if err := repo.CreatePage(ctx, testutil.NewTestShortlink(t, "taken")); err != nil {
		t.Fatalf("seed shortlink: %v", err)
	}
	if err := repo.CreateAccount(ctx, testutil.NewTestAccount(t, "uid-2")); err != nil {
		t.Fatalf("create account: %v", err)
	}

	err := repo.CreatePageForAccount(ctx, "uid-2", testutil.NewTestPage(t, "taken", "uid-2"))
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	account, err := repo.GetAccountByUID(ctx, "uid-2")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.PageName != "" {
		t.Errorf("page name should be rolled back, got %q", account.PageName)
	}
}

func TestRepository_CreatePageForAccount_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	err := repo.CreatePageForAccount(ctx, "ghost", testutil.NewTestPage(t, "ghost", "ghost"))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRepository_UpdatePage_OptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	page := testutil.NewTestPage(t, "bob", "uid-3")
	if err := repo.CreatePage(ctx, page); err != nil {
		t.Fatalf("create page: %v", err)
	}

	first, _ := repo.GetPageByName(ctx, "bob")
	stale, _ := repo.GetPageByName(ctx, "bob")

	first.Links = append(first.Links, model.LinkItem{ID: "ccccccccccc", URL: "https://c.example", Name: "C"})
	if err := repo.UpdatePage(ctx, first); err != nil {
		t.Fatalf("update page: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("version = %d, want 2", first.Version)
	}

	stale.DisplayName = "stale"
	if err := repo.UpdatePage(ctx, stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := repo.GetPageByName(ctx, "bob")
	if len(got.Links) != 3 || got.DisplayName == "stale" {
		t.Errorf("unexpected page after conflict: %+v", got)
	}

	ghost := testutil.NewTestPage(t, "ghost", "uid-3")
	if err := repo.UpdatePage(ctx, ghost); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}

func TestRepository_IncrementHit_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementHit(ctx, "hot", time.Now()); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	record, err := repo.GetAnalytics(ctx, "hot")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.Count != n {
		t.Errorf("count = %d, want %d", record.Count, n)
	}
}

func TestRepository_LastClickedAtNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	later := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if _, err := repo.IncrementHit(ctx, "clock", later); err != nil {
		t.Fatalf("increment: %v", err)
	}
	record, err := repo.IncrementHit(ctx, "clock", earlier)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if record.LastClickedAt == nil || !record.LastClickedAt.Equal(later) {
		t.Errorf("lastClickedAt = %v, want %v", record.LastClickedAt, later)
	}
}

func TestRepository_IncrementLinkClick(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	now := time.Now()
	if _, err := repo.IncrementLinkClick(ctx, "carol", "Blog", "https://blog.example", now); err != nil {
		t.Fatalf("link click: %v", err)
	}
	if _, err := repo.IncrementLinkClick(ctx, "carol", "Shop", "https://shop.example", now); err != nil {
		t.Fatalf("link click: %v", err)
	}
	record, err := repo.IncrementLinkClick(ctx, "carol", "Blog", "https://blog.example", now)
	if err != nil {
		t.Fatalf("link click: %v", err)
	}

	if record.Count != 0 {
		t.Errorf("top-level count = %d, want 0", record.Count)
	}
	if len(record.Links) != 2 {
		t.Fatalf("links = %d, want 2", len(record.Links))
	}
	if record.Links[0].Name != "Blog" || record.Links[0].Count != 2 {
		t.Errorf("first entry = %+v, want Blog x2", record.Links[0])
	}
}

func TestRepository_ApplyClickEvent_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	event := &model.ClickEvent{EventID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Kind: model.ClickKindHit, Name: "dave", ClickedAt: time.Now()}

	applied, err := repo.ApplyClickEvent(ctx, event)
	if err != nil || !applied {
		t.Fatalf("first apply = (%v, %v), want (true, nil)", applied, err)
	}
	applied, err = repo.ApplyClickEvent(ctx, event)
	if err != nil || applied {
		t.Fatalf("second apply = (%v, %v), want (false, nil)", applied, err)
	}

	record, err := repo.GetAnalytics(ctx, "dave")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if record.Count != 1 {
		t.Errorf("count = %d, want 1", record.Count)
	}
}

func TestRepository_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	account := testutil.NewTestAccount(t, "uid-9")
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := repo.CreateAccount(ctx, testutil.NewTestAccount(t, "uid-9")); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	account.DisplayName = "Renamed"
	if err := repo.UpdateAccountProfile(ctx, account); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	got, err := repo.GetAccountByUID(ctx, "uid-9")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.DisplayName != "Renamed" {
		t.Errorf("display name = %q", got.DisplayName)
	}

	if _, err := repo.GetAccountByUID(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
