package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kamazen"

// PrometheusRecorder exports metrics through a dedicated registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	redirects        *prometheus.CounterVec
	redirectDuration prometheus.Histogram
	clicks           *prometheus.CounterVec
	catalogSaves     *prometheus.CounterVec
	productsSaved    prometheus.Counter
	productsDeleted  prometheus.Counter
	importPreviews   *prometheus.CounterVec
	importCommits    *prometheus.CounterVec
	importRows       *prometheus.CounterVec
}

// NewPrometheus registers the application collectors plus the Go runtime and
// process collectors on a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Outbound redirects by outcome",
		}, []string{"outcome"}),
		redirectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redirect_duration_seconds",
			Help:      "Time spent resolving an outbound redirect",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		clicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_events_total",
			Help:      "Click ledger appends by status",
		}, []string{"status"}),
		catalogSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_saves_total",
			Help:      "Catalog writes by status",
		}, []string{"status"}),
		productsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_saved_total",
			Help:      "Products created or updated by admin edits",
		}),
		productsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_deleted_total",
			Help:      "Products deleted by admin edits",
		}),
		importPreviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_previews_total",
			Help:      "CSV uploads validated, by status",
		}, []string{"status"}),
		importCommits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_commits_total",
			Help:      "Import commits by status",
		}, []string{"status"}),
		importRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Committed import rows by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// IncRedirect counts a redirect by outcome.
func (p *PrometheusRecorder) IncRedirect(outcome string) {
	p.redirects.WithLabelValues(outcome).Inc()
}

// ObserveRedirectDuration records redirect duration.
func (p *PrometheusRecorder) ObserveRedirectDuration(duration time.Duration) {
	p.redirectDuration.Observe(duration.Seconds())
}

// IncClickRecorded counts ledger appends.
func (p *PrometheusRecorder) IncClickRecorded(status string) {
	p.clicks.WithLabelValues(status).Inc()
}

// IncCatalogSave counts catalog writes by status.
func (p *PrometheusRecorder) IncCatalogSave(status string) {
	p.catalogSaves.WithLabelValues(status).Inc()
}

// IncProductSaved increments the product saved counter.
func (p *PrometheusRecorder) IncProductSaved() {
	p.productsSaved.Inc()
}

// IncProductDeleted increments the product deleted counter.
func (p *PrometheusRecorder) IncProductDeleted() {
	p.productsDeleted.Inc()
}

// IncImportPreview counts uploads by status.
func (p *PrometheusRecorder) IncImportPreview(status string) {
	p.importPreviews.WithLabelValues(status).Inc()
}

// IncImportCommit counts commits by status.
func (p *PrometheusRecorder) IncImportCommit(status string) {
	p.importCommits.WithLabelValues(status).Inc()
}

// AddImportRows counts committed rows by outcome.
func (p *PrometheusRecorder) AddImportRows(outcome string, n int) {
	if n <= 0 {
		return
	}
	p.importRows.WithLabelValues(outcome).Add(float64(n))
}
