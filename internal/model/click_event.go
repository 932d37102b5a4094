package model

import "time"

// AnalyticsRecord is the hit tally for a single name.
type AnalyticsRecord struct {
	Name          string      `json:"name"`
	Count         int64       `json:"count"`
	LastClickedAt *time.Time  `json:"lastClickedAt,omitempty"`
	Links         []LinkStats `json:"links"`
}

// LinkStats is the per-link click breakdown of a page.
type LinkStats struct {
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	Count         int64     `json:"count"`
	LastClickedAt time.Time `json:"lastClickedAt"`
}

// ClickKind distinguishes name resolutions from link clicks inside a page.
type ClickKind string

const (
	ClickKindHit  ClickKind = "hit"
	ClickKindLink ClickKind = "link"
)

// ClickEvent is a single analytics event carried over the click stream.
type ClickEvent struct {
	EventID   string    `json:"event_id"` // ULID, idempotency key
	Kind      ClickKind `json:"kind"`
	Name      string    `json:"name"`
	LinkName  string    `json:"link_name,omitempty"`
	LinkURL   string    `json:"link_url,omitempty"`
	ClickedAt time.Time `json:"clicked_at"`
}
