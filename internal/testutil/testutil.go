package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 717171

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema reverts every embedded migration and applies them again.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	all, err := migrations.Load()
	if err != nil {
		return err
	}

	for i := len(all) - 1; i >= 0; i-- {
		if _, err := pool.Exec(ctx, all[i].Down); err != nil {
			return fmt.Errorf("revert %s: %w", all[i].Version, err)
		}
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}
	for _, m := range all {
		if _, err := pool.Exec(ctx, m.Up); err != nil {
			return fmt.Errorf("apply %s: %w", m.Version, err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// NewRedisClient connects to REDIS_URL or skips the test.
func NewRedisClient(t testing.TB) *redis.Client {
	t.Helper()

	opt, err := redis.ParseURL(RequireEnv(t, "REDIS_URL"))
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return client
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestShortlink creates a shortlink document with sensible defaults.
func NewTestShortlink(t testing.TB, name string) *model.Page {
	t.Helper()
	now := time.Now().UTC()
	return &model.Page{
		ID:        UniqueID("pg"),
		Name:      name,
		Type:      model.PageTypeShortlink,
		URL:       "https://example.com/" + name,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestPage creates a link-in-bio page owned by uid.
func NewTestPage(t testing.TB, name, uid string) *model.Page {
	t.Helper()
	now := time.Now().UTC()
	return &model.Page{
		ID:          UniqueID("pg"),
		Name:        name,
		Type:        model.PageTypePage,
		DisplayName: name,
		OwnerUID:    uid,
		Links: []model.LinkItem{
			{ID: "aaaaaaaaaaa", URL: "https://example.com/a", Name: "A"},
			{ID: "bbbbbbbbbbb", URL: "https://example.com/b", Name: "B"},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestAccount creates an account without a page.
func NewTestAccount(t testing.TB, uid string) *model.Account {
	t.Helper()
	now := time.Now().UTC()
	return &model.Account{
		ID:          UniqueID("acc"),
		UID:         uid,
		Email:       uid + "@example.com",
		DisplayName: "Test " + uid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UniqueName generates a lowercase name that is unique across test runs.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
