package analytics

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/heylo/heylo/internal/model"
)

const (
	maxNameLength     = 50
	maxLinkNameLength = 200
	maxLinkURLLength  = 2048
)

// ValidateClickEventPayload validates click event payload fields.
func ValidateClickEventPayload(payload ClickEventPayload) error {
	if payload.EventID == "" {
		return fmt.Errorf("event id is required")
	}
	if _, err := ulid.ParseStrict(payload.EventID); err != nil {
		return fmt.Errorf("event id must be a ULID: %w", err)
	}
	if payload.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(payload.Name) > maxNameLength {
		return fmt.Errorf("name length out of bounds")
	}
	if payload.ClickedAt <= 0 {
		return fmt.Errorf("clicked_at must be set")
	}

	switch model.ClickKind(payload.Kind) {
	case model.ClickKindHit:
		if payload.LinkName != "" || payload.LinkURL != "" {
			return fmt.Errorf("hit events carry no link")
		}
	case model.ClickKindLink:
		if payload.LinkName == "" || payload.LinkURL == "" {
			return fmt.Errorf("link events need link name and url")
		}
		if len(payload.LinkName) > maxLinkNameLength {
			return fmt.Errorf("link name too long")
		}
		if len(payload.LinkURL) > maxLinkURLLength {
			return fmt.Errorf("link url too long")
		}
	default:
		return fmt.Errorf("unknown kind %q", payload.Kind)
	}
	return nil
}
