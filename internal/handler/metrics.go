package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/kamazennext/catalog/internal/metrics"
)

// MetricsHandler exposes in-memory metrics in the Prometheus text format.
// Deployments using the Prometheus recorder mount its handler instead.
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

	writeLabelled(w, "kamazen_redirects_total", "outcome", snap.Redirects)
	writeMetric(w, "kamazen_redirect_duration_seconds_count %d\n", snap.RedirectDurationCount)
	writeMetric(w, "kamazen_redirect_duration_seconds_sum %.6f\n", float64(snap.RedirectDurationTotalNs)/1e9)

	writeMetric(w, "kamazen_click_events_total{status=\"success\"} %d\n", snap.ClicksRecorded)
	writeMetric(w, "kamazen_click_events_total{status=\"dropped\"} %d\n", snap.ClicksDropped)

	writeLabelled(w, "kamazen_catalog_saves_total", "status", snap.CatalogSaves)
	writeMetric(w, "kamazen_products_saved_total %d\n", snap.ProductsSaved)
	writeMetric(w, "kamazen_products_deleted_total %d\n", snap.ProductsDeleted)

	writeLabelled(w, "kamazen_import_previews_total", "status", snap.ImportPreviews)
	writeLabelled(w, "kamazen_import_commits_total", "status", snap.ImportCommits)
	writeLabelled(w, "kamazen_import_rows_total", "outcome", snap.ImportRows)
}

// writeLabelled writes one line per label value, in label order.
func writeLabelled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
