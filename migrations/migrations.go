// Package migrations embeds the SQL schema files and applies them in order.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Migration is one versioned schema step.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// Load returns all migrations sorted by version.
func Load() ([]Migration, error) {
	entries, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, name := range entries {
		version, direction, ok := parseName(name)
		if !ok {
			return nil, fmt.Errorf("malformed migration file name %q", name)
		}

		body, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has no up file", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out, nil
}

// parseName splits "000002_pages.up.sql" into ("000002_pages", "up").
func parseName(name string) (string, string, bool) {
	trimmed := strings.TrimSuffix(name, ".sql")
	switch {
	case strings.HasSuffix(trimmed, ".up"):
		return strings.TrimSuffix(trimmed, ".up"), "up", true
	case strings.HasSuffix(trimmed, ".down"):
		return strings.TrimSuffix(trimmed, ".down"), "down", true
	default:
		return "", "", false
	}
}

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Up applies every migration not yet recorded in schema_migrations.
// It returns the versions applied by this call.
func Up(ctx context.Context, db *sql.DB) ([]string, error) {
	migrations, err := Load()
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range migrations {
		ok, err := apply(ctx, db, m)
		if err != nil {
			return applied, err
		}
		if ok {
			applied = append(applied, m.Version)
		}
	}

	return applied, nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin %s: %w", m.Version, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", m.Version, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return false, fmt.Errorf("apply %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version,
	); err != nil {
		return false, fmt.Errorf("record %s: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit %s: %w", m.Version, err)
	}
	return true, nil
}

// Down reverts the most recently applied migration, if any.
func Down(ctx context.Context, db *sql.DB) (string, error) {
	migrations, err := Load()
	if err != nil {
		return "", err
	}

	var latest string
	err = db.QueryRowContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&latest)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read latest version: %w", err)
	}

	for _, m := range migrations {
		if m.Version != latest {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return "", fmt.Errorf("begin %s: %w", m.Version, err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			return "", fmt.Errorf("revert %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
			return "", fmt.Errorf("unrecord %s: %w", m.Version, err)
		}
		return m.Version, tx.Commit()
	}

	return "", fmt.Errorf("applied version %s has no migration file", latest)
}
