package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heylo/heylo/internal/metrics"
	"github.com/heylo/heylo/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "analytics_workers"

	// DefaultBatchSize is the max events per batch.
	DefaultBatchSize = 100

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the max attempts for applying one batch.
	DefaultMaxRetries = 3

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 5 * time.Second

	// DefaultPurgeInterval is how often processed event ids are pruned.
	DefaultPurgeInterval = time.Hour

	// DefaultDedupRetention is how long processed event ids are remembered.
	DefaultDedupRetention = 7 * 24 * time.Hour

	deadLetterMaxLen = 10000
	errorPause       = time.Second
)

// Applier applies one event to the counters. It reports false when the
// event was already applied.
type Applier interface {
	ApplyClickEvent(ctx context.Context, event *model.ClickEvent) (bool, error)
}

// Purger forgets processed event ids older than cutoff.
type Purger interface {
	PurgeProcessedEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

// chore is a task the loop runs at most once per interval.
type chore struct {
	every time.Duration
	last  time.Time
}

func (c *chore) due(now time.Time) bool {
	if c.every <= 0 {
		return false
	}
	if !c.last.IsZero() && now.Sub(c.last) < c.every {
		return false
	}
	c.last = now
	return true
}

// Worker drains the click stream as a member of ConsumerGroup and applies
// every event through an Applier. Delivery is at least once; the Applier
// deduplicates by event id.
type Worker struct {
	redis      *redis.Client
	applier    Applier
	purger     Purger
	logger     *slog.Logger
	metrics    metrics.Recorder
	consumerID string

	batchSize    int
	blockTimeout time.Duration
	maxRetries   int
	claimIdle    time.Duration
	retention    time.Duration

	// Only touched by the Run goroutine.
	claim        chore
	depth        chore
	purge        chore
	claimStartID string

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a new analytics worker.
func NewWorker(client *redis.Client, applier Applier, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:        client,
		applier:      applier,
		logger:       logger.With("component", "analytics.worker", "consumer_id", consumerID),
		metrics:      recorder,
		consumerID:   consumerID,
		batchSize:    DefaultBatchSize,
		blockTimeout: DefaultBlockTimeout,
		maxRetries:   DefaultMaxRetries,
		claimIdle:    DefaultClaimIdle,
		retention:    DefaultDedupRetention,
		claim:        chore{every: DefaultClaimInterval},
		depth:        chore{every: DefaultMetricsInterval},
		purge:        chore{every: DefaultPurgeInterval},
		claimStartID: "0-0",
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides how long one read blocks for new messages.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetClaimInterval overrides the default pending-claim interval.
func (w *Worker) SetClaimInterval(interval time.Duration) {
	if interval > 0 {
		w.claim.every = interval
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// SetMetricsInterval overrides the default queue depth refresh interval.
func (w *Worker) SetMetricsInterval(interval time.Duration) {
	if interval > 0 {
		w.depth.every = interval
	}
}

// SetPurger enables periodic pruning of processed event ids.
func (w *Worker) SetPurger(p Purger, retention time.Duration) {
	w.purger = p
	if retention > 0 {
		w.retention = retention
	}
}

// Run consumes the stream until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	w.logger.Info("analytics worker started")

	for ctx.Err() == nil {
		if err := w.step(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("process error", "error", err)
			sleep(ctx, errorPause)
		}
	}

	w.logger.Info("analytics worker stopped")
	return nil
}

// Shutdown stops the loop and waits for the in-flight batch to finish.
// Its signature matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("analytics worker shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// step runs due chores, then fetches and settles one batch.
func (w *Worker) step(ctx context.Context) error {
	now := time.Now()
	if w.depth.due(now) {
		w.refreshQueueDepth(ctx)
	}
	if w.purger != nil && w.purge.due(now) {
		w.purgeProcessed(ctx)
	}

	messages, err := w.fetch(ctx, now)
	if err != nil || len(messages) == 0 {
		return err
	}

	events, ids := w.decode(ctx, messages)
	if len(events) > 0 {
		if err := w.applyWithRetry(ctx, events); err != nil {
			// Left pending; XAUTOCLAIM hands them out again later.
			return fmt.Errorf("apply batch of %d: %w", len(events), err)
		}
	}
	return w.ack(ctx, ids)
}

// fetch prefers stale pending messages over new ones.
func (w *Worker) fetch(ctx context.Context, now time.Time) ([]redis.XMessage, error) {
	if w.claimIdle > 0 && w.claim.due(now) {
		claimed, next, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   StreamKey,
			Group:    ConsumerGroup,
			Consumer: w.consumerID,
			MinIdle:  w.claimIdle,
			Start:    w.claimStartID,
			Count:    int64(w.batchSize),
		}).Result()
		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			w.logger.Warn("failed to claim pending messages", "error", err)
		case next != "":
			w.claimStartID = next
		}
		if len(claimed) > 0 {
			w.logger.Info("reclaimed pending messages", "count", len(claimed))
			return claimed, nil
		}
	}

	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

// decode returns the valid events plus the ids of every message, poison
// ones included; poison messages are copied to the dead-letter stream.
func (w *Worker) decode(ctx context.Context, messages []redis.XMessage) ([]*model.ClickEvent, []string) {
	events := make([]*model.ClickEvent, 0, len(messages))
	ids := make([]string, 0, len(messages))

	for _, msg := range messages {
		ids = append(ids, msg.ID)

		event, reason, err := decodeMessage(msg)
		if err != nil {
			w.deadLetter(ctx, msg, reason, err)
			continue
		}
		events = append(events, event)
	}
	return events, ids
}

func decodeMessage(msg redis.XMessage) (*model.ClickEvent, string, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, "invalid_format", errors.New("payload field missing or not a string")
	}
	var payload ClickEventPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, "unmarshal_error", err
	}
	if err := ValidateClickEventPayload(payload); err != nil {
		return nil, "validation_error", err
	}
	return payload.Event(), "", nil
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string, cause error) {
	w.logger.Warn("dead-lettering poison message",
		"message_id", msg.ID,
		"reason", reason,
		"detail", cause.Error(),
	)

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]any{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           cause.Error(),
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write to dead-letter stream", "message_id", msg.ID, "error", err)
	}
	w.metrics.IncClickProcessed("dead_lettered")
}

// applyWithRetry replays the whole batch on failure with 2s, 4s, ... pauses.
// Events applied before the failure are skipped on replay.
func (w *Worker) applyWithRetry(ctx context.Context, events []*model.ClickEvent) error {
	var err error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		if err = w.apply(ctx, events); err == nil {
			return nil
		}
		if attempt == w.maxRetries {
			break
		}
		backoff := time.Duration(1<<attempt) * time.Second
		w.logger.Warn("batch failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
	}

	for range events {
		w.metrics.IncClickProcessed("failed")
	}
	return err
}

func (w *Worker) apply(ctx context.Context, events []*model.ClickEvent) error {
	start := time.Now()
	var applied, skipped int

	for _, event := range events {
		ok, err := w.applier.ApplyClickEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("apply event %s: %w", event.EventID, err)
		}
		if !ok {
			skipped++
			w.metrics.IncClickProcessed("skipped")
			continue
		}
		applied++
		w.metrics.IncClickProcessed("success")
		w.metrics.ObserveClickIngestLag(time.Since(event.ClickedAt))
	}

	elapsed := time.Since(start)
	w.metrics.ObserveClickBatchSize(len(events))
	w.metrics.ObserveClickBatchDuration(elapsed)
	w.logger.Debug("batch applied", "events", len(events), "applied", applied, "skipped", skipped, "duration", elapsed)
	return nil
}

func (w *Worker) ack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (w *Worker) refreshQueueDepth(ctx context.Context) {
	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			w.logger.Warn("failed to read stream group info", "error", err)
		}
		return
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			w.metrics.SetClickQueueDepth(g.Pending + g.Lag)
			return
		}
	}
}

func (w *Worker) purgeProcessed(ctx context.Context) {
	purged, err := w.purger.PurgeProcessedEvents(ctx, time.Now().Add(-w.retention))
	if err != nil {
		w.logger.Warn("failed to purge processed events", "error", err)
		return
	}
	if purged > 0 {
		w.logger.Info("processed events purged", "count", purged)
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// isConsumerGroupExistsError reports the BUSYGROUP reply to XGROUP CREATE.
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
