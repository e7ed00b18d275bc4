// Package metrics exposes Prometheus instrumentation for uploads, name
// checks, template creation and exports.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assessx"

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultTaken = "taken"
	ResultStale = "stale"
)

type metrics struct {
	uploadTotal    *prometheus.CounterVec
	nameCheckTotal *prometheus.CounterVec
	createTotal    *prometheus.CounterVec
	createLatency  *prometheus.HistogramVec
	importTotal    *prometheus.CounterVec
	exportTotal    *prometheus.CounterVec
	wizardsOpen    prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		uploadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_total",
			Help:      "Total number of files opened in the import wizard.",
		}, []string{"format", "result"}),
		nameCheckTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_check_total",
			Help:      "Total number of template name uniqueness checks.",
		}, []string{"result"}),
		createTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_create_total",
			Help:      "Total number of template create calls issued by imports.",
		}, []string{"result"}),
		createLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "template_create_latency_seconds",
			Help:      "Latency distribution for template create calls.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"result"}),
		importTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_total",
			Help:      "Total number of finished imports.",
		}, []string{"result"}),
		exportTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_total",
			Help:      "Total number of template exports.",
		}, []string{"format"}),
		wizardsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wizards_open",
			Help:      "Current number of open import wizard sessions.",
		}),
	}
})

func get() *metrics {
	return metricsSingleton()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpload counts an opened file.
func ObserveUpload(format, result string) {
	get().uploadTotal.WithLabelValues(format, result).Inc()
}

// ObserveNameCheck counts a completed name check.
func ObserveNameCheck(result string) {
	get().nameCheckTotal.WithLabelValues(result).Inc()
}

// ObserveCreate records one create call.
func ObserveCreate(result string, took time.Duration) {
	m := get()
	m.createTotal.WithLabelValues(result).Inc()
	m.createLatency.WithLabelValues(result).Observe(took.Seconds())
}

// ObserveImport counts a finished import run.
func ObserveImport(result string) {
	get().importTotal.WithLabelValues(result).Inc()
}

// ObserveExport counts an export.
func ObserveExport(format string) {
	get().exportTotal.WithLabelValues(format).Inc()
}

// WizardOpened and WizardClosed track open sessions.
func WizardOpened() { get().wizardsOpen.Inc() }
func WizardClosed() { get().wizardsOpen.Dec() }
