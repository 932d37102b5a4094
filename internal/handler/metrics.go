package handler

import (
	"fmt"
	"net/http"

	"github.com/heylo/heylo/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "heylo_resolve_cache_hits_total %d\n", snap.ResolveCacheHits)
	writeMetric(w, "heylo_resolve_cache_misses_total %d\n", snap.ResolveCacheMisses)
	writeMetric(w, "heylo_resolve_duration_seconds_count %d\n", snap.ResolveDurationCount)
	writeMetric(w, "heylo_resolve_duration_seconds_sum %.6f\n", float64(snap.ResolveDurationTotalNs)/1e9)

	writeMetric(w, "heylo_shortlinks_created_total %d\n", snap.ShortlinksCreated)
	writeMetric(w, "heylo_pages_created_total %d\n", snap.PagesCreated)
	for _, op := range metrics.SortedKeys(snap.PageUpdates) {
		writeMetric(w, "heylo_page_updates_total{op=%q} %d\n", op, snap.PageUpdates[op])
	}
	writeMetric(w, "heylo_page_version_conflicts_total %d\n", snap.PageVersionConflicts)

	for _, scope := range metrics.SortedKeys(snap.RateLimited) {
		writeMetric(w, "heylo_rate_limited_total{scope=%q} %d\n", scope, snap.RateLimited[scope])
	}

	writeMetric(w, "heylo_clicks_published_total{status=\"success\"} %d\n", snap.ClicksPublished)
	writeMetric(w, "heylo_clicks_published_total{status=\"fallback\"} %d\n", snap.ClicksFallback)

	writeMetric(w, "heylo_clicks_processed_total{status=\"success\"} %d\n", snap.ClicksProcessed)
	writeMetric(w, "heylo_clicks_processed_total{status=\"failed\"} %d\n", snap.ClicksProcessedFailed)
	writeMetric(w, "heylo_clicks_processed_total{status=\"skipped\"} %d\n", snap.ClicksProcessedSkipped)

	writeMetric(w, "heylo_click_batches_total %d\n", snap.ClickBatchCount)
	writeMetric(w, "heylo_click_batch_events_total %d\n", snap.ClickBatchEvents)
	writeMetric(w, "heylo_click_queue_depth %d\n", snap.ClickQueueDepth)
	writeMetric(w, "heylo_click_batch_duration_seconds_count %d\n", snap.ClickBatchDurationCount)
	writeMetric(w, "heylo_click_batch_duration_seconds_sum %.6f\n", float64(snap.ClickBatchDurationNs)/1e9)
	writeMetric(w, "heylo_click_ingest_lag_seconds_count %d\n", snap.ClickIngestLagCount)
	writeMetric(w, "heylo_click_ingest_lag_seconds_sum %.6f\n", float64(snap.ClickIngestLagNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
