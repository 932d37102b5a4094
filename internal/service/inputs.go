package service

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/heylo/heylo/internal/model"
)

// CreateShortlinkInput defines input for creating a shortlink.
// An empty Name asks for a random slug.
type CreateShortlinkInput struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	OwnerUID string `json:"-"`
}

func (in CreateShortlinkInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.URL, urlRules...),
		validation.Field(&in.Name, validation.When(in.Name != "", nameRules...)),
	)
}

// LinkInput describes one link entry supplied by a client.
type LinkInput struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func (in LinkInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.URL, urlRules...),
		validation.Field(&in.Name, validation.Required, validation.Length(1, maxTextLength)),
		validation.Field(&in.Icon, validation.Length(0, maxIconLength)),
	)
}

// CreatePageInput defines input for creating a link-in-bio page.
type CreatePageInput struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName"`
	Links       []LinkInput `json:"links"`
}

func (in CreatePageInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, nameRules...),
		validation.Field(&in.DisplayName, validation.Length(0, maxTextLength)),
		validation.Field(&in.Links, validation.Length(0, 100)),
	)
}

// EditLinkInput replaces the fields of an existing link.
type EditLinkInput struct {
	ID string `json:"id"`
	LinkInput
}

func (in EditLinkInput) Validate() error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Required),
	); err != nil {
		return err
	}
	return in.LinkInput.Validate()
}

// ReorderLinkInput moves a link to ToIndex. FromIndex is informational.
type ReorderLinkInput struct {
	ID        string `json:"id"`
	FromIndex *int   `json:"fromIndex"`
	ToIndex   *int   `json:"toIndex"`
}

func (in ReorderLinkInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Required),
		validation.Field(&in.FromIndex, validation.NotNil),
		validation.Field(&in.ToIndex, validation.NotNil),
	)
}

// SetThemeInput sets one theme attribute.
type SetThemeInput struct {
	Field model.ThemeField `json:"field"`
	Value string           `json:"value"`
}

func (in SetThemeInput) Validate() error {
	fields := make([]any, len(model.ThemeFields))
	for i, f := range model.ThemeFields {
		fields[i] = f
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.Field, validation.Required, validation.In(fields...)),
		validation.Field(&in.Value, validation.Required, validation.Length(1, maxIconLength)),
	)
}

// UpdateAccountInput changes profile fields. Nil fields are left alone.
type UpdateAccountInput struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoUrl"`
}

func (in UpdateAccountInput) Validate() error {
	if in.DisplayName == nil && in.PhotoURL == nil {
		return validation.NewError("validation_empty_update", "at least one field must be provided")
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.DisplayName, validation.Length(0, maxTextLength)),
		validation.Field(&in.PhotoURL, validation.When(in.PhotoURL != nil && *in.PhotoURL != "", urlRules...)),
	)
}

// TrackClickInput identifies a clicked link on a page.
type TrackClickInput struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (in TrackClickInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.URL, validation.Required, validation.Length(1, maxURLLength)),
		validation.Field(&in.Name, validation.Required, validation.Length(1, maxTextLength)),
	)
}
