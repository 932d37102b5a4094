package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/heylo/heylo/internal/model"
)

// ErrAnalyticsNotFound is returned when no hits were ever recorded for a name.
var ErrAnalyticsNotFound = errors.New("analytics record not found")

// queryRower is satisfied by both the pool and a transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// IncrementHit atomically bumps the hit counter for name, creating the record
// with count 1 when absent. lastClickedAt never moves backwards.
func (r *Repository) IncrementHit(ctx context.Context, name string, at time.Time) (*model.AnalyticsRecord, error) {
	if err := incrementHit(ctx, r.pool, name, at); err != nil {
		return nil, err
	}
	return getAnalytics(ctx, r.pool, name)
}

// IncrementLinkClick ensures the record for name exists and atomically bumps
// the breakdown entry for (linkName, linkURL).
func (r *Repository) IncrementLinkClick(ctx context.Context, name, linkName, linkURL string, at time.Time) (*model.AnalyticsRecord, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		return incrementLinkClick(ctx, tx, name, linkName, linkURL, at)
	})
	if err != nil {
		return nil, err
	}
	return getAnalytics(ctx, r.pool, name)
}

// ApplyClickEvent records a streamed click exactly once. It reports false
// when the event id was already processed.
func (r *Repository) ApplyClickEvent(ctx context.Context, event *model.ClickEvent) (bool, error) {
	applied := false

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO processed_click_events (event_id) VALUES ($1)
			ON CONFLICT (event_id) DO NOTHING
		`, event.EventID)
		if err != nil {
			return fmt.Errorf("failed to record event id: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		switch event.Kind {
		case model.ClickKindLink:
			err = incrementLinkClick(ctx, tx, event.Name, event.LinkName, event.LinkURL, event.ClickedAt)
		default:
			err = incrementHit(ctx, tx, event.Name, event.ClickedAt)
		}
		if err != nil {
			return err
		}

		applied = true
		return nil
	})

	return applied, err
}

// GetAnalytics returns the record for name with its per-link breakdown.
func (r *Repository) GetAnalytics(ctx context.Context, name string) (*model.AnalyticsRecord, error) {
	return getAnalytics(ctx, r.pool, name)
}

// PurgeProcessedEvents removes idempotency markers older than cutoff.
func (r *Repository) PurgeProcessedEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM processed_click_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func incrementHit(ctx context.Context, db execer, name string, at time.Time) error {
	_, err := db.Exec(ctx, `
		INSERT INTO analytics (name, count, last_clicked_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (name) DO UPDATE
		SET count = analytics.count + 1,
		    last_clicked_at = GREATEST(analytics.last_clicked_at, EXCLUDED.last_clicked_at)
	`, name, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to increment hit: %w", err)
	}
	return nil
}

func incrementLinkClick(ctx context.Context, db execer, name, linkName, linkURL string, at time.Time) error {
	if _, err := db.Exec(ctx, `
		INSERT INTO analytics (name, count) VALUES ($1, 0)
		ON CONFLICT (name) DO NOTHING
	`, name); err != nil {
		return fmt.Errorf("failed to ensure analytics record: %w", err)
	}

	_, err := db.Exec(ctx, `
		INSERT INTO analytics_link_clicks (name, link_name, link_url, count, last_clicked_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (name, link_name, link_url) DO UPDATE
		SET count = analytics_link_clicks.count + 1,
		    last_clicked_at = GREATEST(analytics_link_clicks.last_clicked_at, EXCLUDED.last_clicked_at)
	`, name, linkName, linkURL, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to increment link click: %w", err)
	}
	return nil
}

func getAnalytics(ctx context.Context, db queryRower, name string) (*model.AnalyticsRecord, error) {
	record := &model.AnalyticsRecord{Name: name, Links: []model.LinkStats{}}

	err := db.QueryRow(ctx,
		`SELECT count, last_clicked_at FROM analytics WHERE name = $1`, name,
	).Scan(&record.Count, &record.LastClickedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalyticsNotFound
		}
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}

	rows, err := db.Query(ctx, `
		SELECT link_name, link_url, count, last_clicked_at
		FROM analytics_link_clicks
		WHERE name = $1
		ORDER BY id
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list link clicks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stat model.LinkStats
		if err := rows.Scan(&stat.Name, &stat.URL, &stat.Count, &stat.LastClickedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link click: %w", err)
		}
		record.Links = append(record.Links, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate link clicks: %w", err)
	}

	return record, nil
}
