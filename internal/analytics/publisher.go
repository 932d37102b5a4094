// Package analytics moves click events through a Redis stream so that
// resolution never waits on the counter tables.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/heylo/heylo/internal/metrics"
	"github.com/heylo/heylo/internal/model"
)

const (
	// StreamKey is the Redis stream for click events.
	StreamKey = "stream:click_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:click_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// ClickEventPayload is the compact wire format stored in the stream.
type ClickEventPayload struct {
	EventID   string `json:"id"`
	Kind      string `json:"k"`
	Name      string `json:"n"`
	LinkName  string `json:"ln,omitempty"`
	LinkURL   string `json:"lu,omitempty"`
	ClickedAt int64  `json:"t"` // Unix milliseconds
}

// NewPayload builds a payload with a fresh event id.
func NewPayload(kind model.ClickKind, name, linkURL, linkName string, at time.Time) ClickEventPayload {
	return ClickEventPayload{
		EventID:   ulid.Make().String(),
		Kind:      string(kind),
		Name:      name,
		LinkName:  linkName,
		LinkURL:   linkURL,
		ClickedAt: at.UnixMilli(),
	}
}

// Event converts the payload back into a ClickEvent.
func (p ClickEventPayload) Event() *model.ClickEvent {
	return &model.ClickEvent{
		EventID:   p.EventID,
		Kind:      model.ClickKind(p.Kind),
		Name:      p.Name,
		LinkName:  p.LinkName,
		LinkURL:   p.LinkURL,
		ClickedAt: time.UnixMilli(p.ClickedAt).UTC(),
	}
}

// Sink is the synchronous counterpart used when the stream is unavailable.
type Sink interface {
	Hit(ctx context.Context, name string) error
	LinkClick(ctx context.Context, name, linkURL, linkName string) error
}

// Publisher enqueues click events to the Redis stream. When a publish
// fails the event is handed to the fallback sink instead of being dropped.
type Publisher struct {
	redis    *redis.Client
	fallback Sink
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewPublisher creates a new analytics event publisher. fallback may be nil.
func NewPublisher(client *redis.Client, fallback Sink, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:    client,
		fallback: fallback,
		logger:   logger.With("component", "analytics.publisher"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// Publish adds a click event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event ClickEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// Hit enqueues a resolution of name.
func (p *Publisher) Hit(ctx context.Context, name string) error {
	event := NewPayload(model.ClickKindHit, name, "", "", p.now())
	return p.publishOrFallback(ctx, event, func() error {
		return p.fallback.Hit(ctx, name)
	})
}

// LinkClick enqueues a click on one link of page name.
func (p *Publisher) LinkClick(ctx context.Context, name, linkURL, linkName string) error {
	event := NewPayload(model.ClickKindLink, name, linkURL, linkName, p.now())
	return p.publishOrFallback(ctx, event, func() error {
		return p.fallback.LinkClick(ctx, name, linkURL, linkName)
	})
}

func (p *Publisher) publishOrFallback(ctx context.Context, event ClickEventPayload, fallback func() error) error {
	streamID, err := p.Publish(ctx, event)
	if err == nil {
		p.logger.Debug("click event published",
			"name", event.Name,
			"kind", event.Kind,
			"stream_id", streamID,
		)
		p.metrics.IncClickPublished("success")
		return nil
	}

	p.logger.Warn("failed to publish click event",
		"name", event.Name,
		"kind", event.Kind,
		"error", err,
	)
	p.metrics.IncClickPublished("fallback")

	if p.fallback == nil {
		return err
	}
	return fallback()
}
