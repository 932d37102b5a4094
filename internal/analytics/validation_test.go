package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/heylo/heylo/internal/model"
)

func TestValidateClickEventPayload(t *testing.T) {
	now := time.Now()
	hit := NewPayload(model.ClickKindHit, "alice", "", "", now)
	link := NewPayload(model.ClickKindLink, "alice", "github.com/alice", "GitHub", now)

	for _, valid := range []ClickEventPayload{hit, link} {
		if err := ValidateClickEventPayload(valid); err != nil {
			t.Fatalf("expected valid payload %+v, got %v", valid, err)
		}
	}

	mutate := func(base ClickEventPayload, fn func(*ClickEventPayload)) ClickEventPayload {
		fn(&base)
		return base
	}

	cases := []struct {
		name    string
		payload ClickEventPayload
	}{
		{"missing_event_id", mutate(hit, func(p *ClickEventPayload) { p.EventID = "" })},
		{"bad_event_id", mutate(hit, func(p *ClickEventPayload) { p.EventID = "not-a-ulid" })},
		{"missing_name", mutate(hit, func(p *ClickEventPayload) { p.Name = "" })},
		{"name_too_long", mutate(hit, func(p *ClickEventPayload) { p.Name = strings.Repeat("a", 51) })},
		{"missing_clicked_at", mutate(hit, func(p *ClickEventPayload) { p.ClickedAt = 0 })},
		{"unknown_kind", mutate(hit, func(p *ClickEventPayload) { p.Kind = "view" })},
		{"hit_with_link", mutate(hit, func(p *ClickEventPayload) { p.LinkURL = "x.com" })},
		{"link_without_url", mutate(link, func(p *ClickEventPayload) { p.LinkURL = "" })},
		{"link_without_name", mutate(link, func(p *ClickEventPayload) { p.LinkName = "" })},
	}

	for _, tc := range cases {
		if err := ValidateClickEventPayload(tc.payload); err == nil {
			t.Fatalf("expected error for %s", tc.name)
		}
	}
}

func TestPayloadEventRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	payload := NewPayload(model.ClickKindLink, "alice", "github.com/alice", "GitHub", at)

	event := payload.Event()
	if event.EventID != payload.EventID || event.Kind != model.ClickKindLink {
		t.Errorf("unexpected event: %+v", event)
	}
	if !event.ClickedAt.Equal(at) {
		t.Errorf("clickedAt = %v, want %v", event.ClickedAt, at)
	}
	if event.LinkURL != "github.com/alice" || event.LinkName != "GitHub" {
		t.Errorf("link fields lost: %+v", event)
	}
}
