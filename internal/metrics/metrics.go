// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Resolution metrics
	IncResolveCacheHit()
	IncResolveCacheMiss()
	ObserveResolveDuration(duration time.Duration)

	// Document metrics
	IncShortlinkCreated()
	IncPageCreated()
	IncPageUpdated(op string)
	IncPageVersionConflict()

	// Admission control
	IncRateLimited(scope string)

	// Click analytics pipeline
	IncClickPublished(status string) // status: "success" or "fallback"
	IncClickProcessed(status string) // status: "success", "failed", "skipped"
	ObserveClickBatchSize(size int)
	ObserveClickBatchDuration(duration time.Duration)
	SetClickQueueDepth(depth int64)
	ObserveClickIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
