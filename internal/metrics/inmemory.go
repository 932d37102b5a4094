package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ResolveCacheHits       uint64
	ResolveCacheMisses     uint64
	ResolveDurationCount   uint64
	ResolveDurationTotalNs int64

	ShortlinksCreated    uint64
	PagesCreated         uint64
	PageUpdates          map[string]uint64
	PageVersionConflicts uint64
	RateLimited          map[string]uint64

	ClicksPublished         uint64
	ClicksFallback          uint64
	ClicksProcessed         uint64
	ClicksProcessedFailed   uint64
	ClicksProcessedSkipped  uint64
	ClickBatchCount         uint64
	ClickBatchEvents        uint64
	ClickBatchDurationCount uint64
	ClickBatchDurationNs    int64
	ClickQueueDepth         int64
	ClickIngestLagCount     uint64
	ClickIngestLagNs        int64
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	resolveCacheHits       uint64
	resolveCacheMisses     uint64
	resolveDurationCount   uint64
	resolveDurationTotalNs int64

	shortlinksCreated    uint64
	pagesCreated         uint64
	pageVersionConflicts uint64

	clicksPublished         uint64
	clicksFallback          uint64
	clicksProcessed         uint64
	clicksProcessedFailed   uint64
	clicksProcessedSkipped  uint64
	clickBatchCount         uint64
	clickBatchEvents        uint64
	clickBatchDurationCount uint64
	clickBatchDurationNs    int64
	clickQueueDepth         int64
	clickIngestLagCount     uint64
	clickIngestLagNs        int64

	mu          sync.Mutex
	pageUpdates map[string]uint64
	rateLimited map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		pageUpdates: make(map[string]uint64),
		rateLimited: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	updates := copyCounts(m.pageUpdates)
	limited := copyCounts(m.rateLimited)
	m.mu.Unlock()

	return Snapshot{
		ResolveCacheHits:        atomic.LoadUint64(&m.resolveCacheHits),
		ResolveCacheMisses:      atomic.LoadUint64(&m.resolveCacheMisses),
		ResolveDurationCount:    atomic.LoadUint64(&m.resolveDurationCount),
		ResolveDurationTotalNs:  atomic.LoadInt64(&m.resolveDurationTotalNs),
		ShortlinksCreated:       atomic.LoadUint64(&m.shortlinksCreated),
		PagesCreated:            atomic.LoadUint64(&m.pagesCreated),
		PageUpdates:             updates,
		PageVersionConflicts:    atomic.LoadUint64(&m.pageVersionConflicts),
		RateLimited:             limited,
		ClicksPublished:         atomic.LoadUint64(&m.clicksPublished),
		ClicksFallback:          atomic.LoadUint64(&m.clicksFallback),
		ClicksProcessed:         atomic.LoadUint64(&m.clicksProcessed),
		ClicksProcessedFailed:   atomic.LoadUint64(&m.clicksProcessedFailed),
		ClicksProcessedSkipped:  atomic.LoadUint64(&m.clicksProcessedSkipped),
		ClickBatchCount:         atomic.LoadUint64(&m.clickBatchCount),
		ClickBatchEvents:        atomic.LoadUint64(&m.clickBatchEvents),
		ClickBatchDurationCount: atomic.LoadUint64(&m.clickBatchDurationCount),
		ClickBatchDurationNs:    atomic.LoadInt64(&m.clickBatchDurationNs),
		ClickQueueDepth:         atomic.LoadInt64(&m.clickQueueDepth),
		ClickIngestLagCount:     atomic.LoadUint64(&m.clickIngestLagCount),
		ClickIngestLagNs:        atomic.LoadInt64(&m.clickIngestLagNs),
	}
}

// SortedKeys returns the keys of a labelled counter in stable order.
func SortedKeys(counts map[string]uint64) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// IncResolveCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncResolveCacheHit() {
	atomic.AddUint64(&m.resolveCacheHits, 1)
}

// IncResolveCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncResolveCacheMiss() {
	atomic.AddUint64(&m.resolveCacheMisses, 1)
}

// ObserveResolveDuration records resolution duration.
func (m *InMemoryRecorder) ObserveResolveDuration(duration time.Duration) {
	atomic.AddUint64(&m.resolveDurationCount, 1)
	atomic.AddInt64(&m.resolveDurationTotalNs, duration.Nanoseconds())
}

func (m *InMemoryRecorder) IncShortlinkCreated() {
	atomic.AddUint64(&m.shortlinksCreated, 1)
}

func (m *InMemoryRecorder) IncPageCreated() {
	atomic.AddUint64(&m.pagesCreated, 1)
}

// IncPageUpdated counts a successful page write labelled by operation.
func (m *InMemoryRecorder) IncPageUpdated(op string) {
	m.mu.Lock()
	m.pageUpdates[op]++
	m.mu.Unlock()
}

func (m *InMemoryRecorder) IncPageVersionConflict() {
	atomic.AddUint64(&m.pageVersionConflicts, 1)
}

// IncRateLimited counts a rejected request labelled by limiter scope.
func (m *InMemoryRecorder) IncRateLimited(scope string) {
	m.mu.Lock()
	m.rateLimited[scope]++
	m.mu.Unlock()
}

// IncClickPublished counts stream publishes by outcome.
func (m *InMemoryRecorder) IncClickPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.clicksPublished, 1)
		return
	}
	atomic.AddUint64(&m.clicksFallback, 1)
}

// IncClickProcessed counts worker outcomes.
func (m *InMemoryRecorder) IncClickProcessed(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.clicksProcessed, 1)
	case "skipped":
		atomic.AddUint64(&m.clicksProcessedSkipped, 1)
	default:
		atomic.AddUint64(&m.clicksProcessedFailed, 1)
	}
}

func (m *InMemoryRecorder) ObserveClickBatchSize(size int) {
	atomic.AddUint64(&m.clickBatchCount, 1)
	atomic.AddUint64(&m.clickBatchEvents, uint64(size))
}

func (m *InMemoryRecorder) ObserveClickBatchDuration(duration time.Duration) {
	atomic.AddUint64(&m.clickBatchDurationCount, 1)
	atomic.AddInt64(&m.clickBatchDurationNs, duration.Nanoseconds())
}

func (m *InMemoryRecorder) SetClickQueueDepth(depth int64) {
	atomic.StoreInt64(&m.clickQueueDepth, depth)
}

func (m *InMemoryRecorder) ObserveClickIngestLag(lag time.Duration) {
	atomic.AddUint64(&m.clickIngestLagCount, 1)
	atomic.AddInt64(&m.clickIngestLagNs, lag.Nanoseconds())
}
