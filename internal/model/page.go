// Package model defines domain entities for the application.
package model

import "time"

// PageType distinguishes bare short links from link-in-bio pages.
type PageType string

const (
	PageTypeShortlink PageType = "shortlink"
	PageTypePage      PageType = "page"
)

// IsValid checks if the page type is known.
func (t PageType) IsValid() bool {
	return t == PageTypeShortlink || t == PageTypePage
}

// Page is a named document in the shared slug namespace.
// A shortlink carries URL; a page carries Links and optionally Theme.
type Page struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        PageType   `json:"type"`
	DisplayName string     `json:"displayName,omitempty"`
	OwnerUID    string     `json:"ownerUid,omitempty"`
	URL         string     `json:"url,omitempty"`
	Links       []LinkItem `json:"links,omitempty"`
	Theme       *Theme     `json:"theme,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsShortlink reports whether the page is a bare redirect target.
func (p *Page) IsShortlink() bool {
	return p.Type == PageTypeShortlink
}

// IsOwnedBy reports whether uid owns the page.
func (p *Page) IsOwnedBy(uid string) bool {
	return uid != "" && p.OwnerUID == uid
}

// LinkIndex returns the position of the link with the given id, or -1.
func (p *Page) LinkIndex(id string) int {
	for i := range p.Links {
		if p.Links[i].ID == id {
			return i
		}
	}
	return -1
}

// HasLink reports whether the page lists a link with this url and name.
func (p *Page) HasLink(url, name string) bool {
	for i := range p.Links {
		if p.Links[i].URL == url && p.Links[i].Name == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Links != nil {
		cp.Links = make([]LinkItem, len(p.Links))
		copy(cp.Links, p.Links)
	}
	if p.Theme != nil {
		theme := *p.Theme
		cp.Theme = &theme
	}
	return &cp
}

// LinkItem is one entry in a page's ordered link list.
type LinkItem struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Theme holds the display settings of a page. All fields default to "".
type Theme struct {
	ProfilePicture string `json:"profilePicture"`
	CoverPicture   string `json:"coverPicture"`
	CoverThemeID   string `json:"coverThemeId"`
	BodyThemeID    string `json:"bodyThemeId"`
	ButtonType     string `json:"buttonType"`
	ButtonColor    string `json:"buttonColor"`
	ButtonText     string `json:"buttonText"`
}

// ThemeField names a single settable theme attribute.
type ThemeField string

const (
	ThemeProfilePicture ThemeField = "profilepicture"
	ThemeCoverPicture   ThemeField = "coverpicture"
	ThemeCoverTheme     ThemeField = "covertheme"
	ThemeBodyTheme      ThemeField = "bodytheme"
	ThemeButtonType     ThemeField = "btntype"
	ThemeButtonColor    ThemeField = "btncolor"
	ThemeButtonText     ThemeField = "btntext"
)

// ThemeFields lists every settable theme attribute.
var ThemeFields = []ThemeField{
	ThemeProfilePicture,
	ThemeCoverPicture,
	ThemeCoverTheme,
	ThemeBodyTheme,
	ThemeButtonType,
	ThemeButtonColor,
	ThemeButtonText,
}

// IsValid checks if the field is a known theme attribute.
func (f ThemeField) IsValid() bool {
	for _, known := range ThemeFields {
		if f == known {
			return true
		}
	}
	return false
}

// Set writes value into the attribute named by f and leaves every other attribute alone.
// Returns false for an unknown field.
func (t *Theme) Set(f ThemeField, value string) bool {
	switch f {
	case ThemeProfilePicture:
		t.ProfilePicture = value
	case ThemeCoverPicture:
		t.CoverPicture = value
	case ThemeCoverTheme:
		t.CoverThemeID = value
	case ThemeBodyTheme:
		t.BodyThemeID = value
	case ThemeButtonType:
		t.ButtonType = value
	case ThemeButtonColor:
		t.ButtonColor = value
	case ThemeButtonText:
		t.ButtonText = value
	default:
		return false
	}
	return true
}
