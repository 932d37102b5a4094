// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"encoding/json"
	"time"

	"github.com/heylo/heylo/internal/model"
)

// ErrorResponse is the body of every non-2xx answer except auth failures.
type ErrorResponse struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Stack   string            `json:"stack,omitempty"`
}

// CreateShortlinkRequest represents the request body for creating a shortlink.
type CreateShortlinkRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// LinkRequest is one link entry in a request body.
type LinkRequest struct {
	ID   string `json:"id,omitempty"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// CreatePageRequest represents the request body for creating a page.
// Data is the legacy spelling of Links.
type CreatePageRequest struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"displayName,omitempty"`
	Links       []LinkRequest `json:"links,omitempty"`
	Data        []LinkRequest `json:"data,omitempty"`
}

// InitialLinks returns Links, falling back to Data.
func (r CreatePageRequest) InitialLinks() []LinkRequest {
	if len(r.Links) > 0 {
		return r.Links
	}
	return r.Data
}

// DisplayNameRequest represents PUT /page/displaytext.
type DisplayNameRequest struct {
	DisplayName string `json:"displayName"`
}

// ReorderLinkRequest represents PUT /page/link/changeorder.
type ReorderLinkRequest struct {
	ID        string `json:"id"`
	FromIndex *int   `json:"fromIndex"`
	ToIndex   *int   `json:"toIndex"`
}

// UpdateAccountRequest represents PUT /users/{id}.
type UpdateAccountRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoUrl,omitempty"`
}

// TrackClickRequest represents POST /{slug}/clicks.
type TrackClickRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// PageResponse represents a page or shortlink in API responses.
type PageResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        model.PageType   `json:"type"`
	DisplayName string           `json:"displayName,omitempty"`
	URL         string           `json:"url,omitempty"`
	Links       []model.LinkItem `json:"links"`
	Theme       *model.Theme     `json:"theme,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ToPageResponse converts a model.Page. Pages always carry a links array.
func ToPageResponse(p *model.Page) *PageResponse {
	if p == nil {
		return nil
	}
	resp := &PageResponse{
		ID:          p.ID,
		Name:        p.Name,
		Type:        p.Type,
		DisplayName: p.DisplayName,
		URL:         p.URL,
		Links:       p.Links,
		Theme:       p.Theme,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Type == model.PageTypePage && resp.Links == nil {
		resp.Links = []model.LinkItem{}
	}
	return resp
}

type pageResponse PageResponse

// MarshalJSON always writes links for pages and leaves the key out for
// shortlinks.
func (r PageResponse) MarshalJSON() ([]byte, error) {
	if r.Type == model.PageTypePage {
		if r.Links == nil {
			r.Links = []model.LinkItem{}
		}
		return json.Marshal(pageResponse(r))
	}
	return json.Marshal(struct {
		pageResponse
		Links []model.LinkItem `json:"links,omitempty"`
	}{pageResponse: pageResponse(r)})
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	PhotoURL      string    `json:"photoUrl"`
	EmailVerified bool      `json:"emailVerified"`
	PageName      string    `json:"pageName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ToAccountResponse converts a model.Account.
func ToAccountResponse(a *model.Account) *AccountResponse {
	if a == nil {
		return nil
	}
	return &AccountResponse{
		UID:           a.UID,
		Email:         a.Email,
		DisplayName:   a.DisplayName,
		PhotoURL:      a.PhotoURL,
		EmailVerified: a.EmailVerified,
		PageName:      a.PageName,
		CreatedAt:     a.CreatedAt,
	}
}

// InitResponse bootstraps the dashboard. Page is omitted until one exists.
type InitResponse struct {
	User *AccountResponse `json:"user"`
	Page *PageResponse    `json:"page,omitempty"`
}

// CreatePageResponse is returned by POST /page.
type CreatePageResponse struct {
	User *AccountResponse `json:"user"`
	Page *PageResponse    `json:"page"`
}

// AnalyticsResponse represents an analytics record.
type AnalyticsResponse struct {
	Name          string            `json:"name"`
	Count         int64             `json:"count"`
	LastClickedAt *time.Time        `json:"lastClickedAt,omitempty"`
	Links         []model.LinkStats `json:"links"`
}

// ToAnalyticsResponse converts a model.AnalyticsRecord.
func ToAnalyticsResponse(r *model.AnalyticsRecord) *AnalyticsResponse {
	if r == nil {
		return nil
	}
	links := r.Links
	if links == nil {
		links = []model.LinkStats{}
	}
	return &AnalyticsResponse{
		Name:          r.Name,
		Count:         r.Count,
		LastClickedAt: r.LastClickedAt,
		Links:         links,
	}
}
