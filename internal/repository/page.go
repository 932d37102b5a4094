package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heylo/heylo/internal/model"
)

// Common errors for page repository operations.
var (
	ErrPageNotFound       = errors.New("page not found")
	ErrNameTaken          = errors.New("name already taken")
	ErrVersionConflict    = errors.New("page was modified concurrently")
	ErrPageAlreadyClaimed = errors.New("account already owns a page")
)

const pageColumns = `id, name, type, display_name, owner_uid, url, links, theme, version, created_at, updated_at`

// CreatePage inserts a new page or shortlink document.
func (r *Repository) CreatePage(ctx context.Context, page *model.Page) error {
	return insertPage(ctx, r.pool, page)
}

// GetPageByName retrieves a document by its unique name.
// This is the hot path for resolution.
func (r *Repository) GetPageByName(ctx context.Context, name string) (*model.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE name = $1`

	page, err := scanPage(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("failed to get page by name: %w", err)
	}

	return page, nil
}

// NameExists checks whether a name is already used in the shared namespace.
func (r *Repository) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pages WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check name: %w", err)
	}
	return exists, nil
}

// CreatePageForAccount claims page.Name on the account identified by uid and
// inserts the page in one transaction. Neither write survives if the other fails.
func (r *Repository) CreatePageForAccount(ctx context.Context, uid string, page *model.Page) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE accounts
			SET page_name = $2, updated_at = NOW()
			WHERE uid = $1 AND page_name IS NULL
		`, uid, page.Name)
		if err != nil {
			if _, ok := uniqueViolation(err); ok {
				return ErrNameTaken
			}
			return fmt.Errorf("failed to claim page name: %w", err)
		}

		if tag.RowsAffected() == 0 {
			var current *string
			err := tx.QueryRow(ctx, `SELECT page_name FROM accounts WHERE uid = $1`, uid).Scan(&current)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAccountNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to read account: %w", err)
			}
			return ErrPageAlreadyClaimed
		}

		return insertPage(ctx, tx, page)
	})
}

// UpdatePage writes the full document if its stored version still equals
// page.Version. On success page.Version and page.UpdatedAt are refreshed.
func (r *Repository) UpdatePage(ctx context.Context, page *model.Page) error {
	links, theme, err := encodePageJSON(page)
	if err != nil {
		return err
	}

	query := `
		UPDATE pages
		SET display_name = $3, url = $4, links = $5, theme = $6,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err = r.pool.QueryRow(ctx, query,
		page.ID,
		page.Version,
		nullableString(page.DisplayName),
		nullableString(page.URL),
		links,
		theme,
	).Scan(&page.Version, &page.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pages WHERE id = $1)`, page.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check page: %w", err)
		}
		if !exists {
			return ErrPageNotFound
		}
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}

	return nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertPage(ctx context.Context, db execer, page *model.Page) error {
	links, theme, err := encodePageJSON(page)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pages (id, name, type, display_name, owner_uid, url, links, theme, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = db.Exec(ctx, query,
		page.ID,
		page.Name,
		string(page.Type),
		nullableString(page.DisplayName),
		nullableString(page.OwnerUID),
		nullableString(page.URL),
		links,
		theme,
		page.Version,
		page.CreatedAt,
		page.UpdatedAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrNameTaken
		}
		return fmt.Errorf("failed to create page: %w", err)
	}

	return nil
}

// encodePageJSON renders links and theme for the JSONB columns.
// Shortlinks store NULL links; pages store at least "[]".
func encodePageJSON(page *model.Page) ([]byte, []byte, error) {
	var links, theme []byte
	var err error

	if page.Type == model.PageTypePage {
		items := page.Links
		if items == nil {
			items = []model.LinkItem{}
		}
		if links, err = json.Marshal(items); err != nil {
			return nil, nil, fmt.Errorf("encode links: %w", err)
		}
	}

	if page.Theme != nil {
		if theme, err = json.Marshal(page.Theme); err != nil {
			return nil, nil, fmt.Errorf("encode theme: %w", err)
		}
	}

	return links, theme, nil
}

func scanPage(row pgx.Row) (*model.Page, error) {
	var (
		page                       model.Page
		pageType                   string
		displayName, ownerUID, url *string
		links, theme               []byte
	)

	err := row.Scan(
		&page.ID,
		&page.Name,
		&pageType,
		&displayName,
		&ownerUID,
		&url,
		&links,
		&theme,
		&page.Version,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	page.Type = model.PageType(pageType)
	page.DisplayName = derefString(displayName)
	page.OwnerUID = derefString(ownerUID)
	page.URL = derefString(url)

	if links != nil {
		page.Links = []model.LinkItem{}
		if err := json.Unmarshal(links, &page.Links); err != nil {
			return nil, fmt.Errorf("decode links: %w", err)
		}
	}
	if theme != nil {
		page.Theme = &model.Theme{}
		if err := json.Unmarshal(theme, page.Theme); err != nil {
			return nil, fmt.Errorf("decode theme: %w", err)
		}
	}

	return &page, nil
}
