package metrics

import "time"

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// NewNoop returns a Recorder that does nothing.
func NewNoop() *NoopRecorder {
	return &NoopRecorder{}
}

func (NoopRecorder) IncResolveCacheHit()                     {}
func (NoopRecorder) IncResolveCacheMiss()                    {}
func (NoopRecorder) ObserveResolveDuration(time.Duration)    {}
func (NoopRecorder) IncShortlinkCreated()                    {}
func (NoopRecorder) IncPageCreated()                         {}
func (NoopRecorder) IncPageUpdated(string)                   {}
func (NoopRecorder) IncPageVersionConflict()                 {}
func (NoopRecorder) IncRateLimited(string)                   {}
func (NoopRecorder) IncClickPublished(string)                {}
func (NoopRecorder) IncClickProcessed(string)                {}
func (NoopRecorder) ObserveClickBatchSize(int)               {}
func (NoopRecorder) ObserveClickBatchDuration(time.Duration) {}
func (NoopRecorder) SetClickQueueDepth(int64)                {}
func (NoopRecorder) ObserveClickIngestLag(time.Duration)     {}
