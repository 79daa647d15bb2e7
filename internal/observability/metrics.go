package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for one import run.
type Metrics struct {
	RowsRead      prometheus.Counter
	RowsAccepted  prometheus.Counter
	RowsRejected  prometheus.Counter
	PointsWritten prometheus.Counter

	// Zip lookup metrics.
	ZipLookups *prometheus.CounterVec // labels: outcome={found,miss,error}
	ZipCache   *prometheus.CounterVec // labels: result={hit,miss}

	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers all importer metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ust_import",
			Name:      "rows_read_total",
			Help:      "Total data rows read from the extract, header excluded.",
		}),
		RowsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ust_import",
			Name:      "rows_accepted_total",
			Help:      "Rows decoded into tank records.",
		}),
		RowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ust_import",
			Name:      "rows_rejected_total",
			Help:      "Rows rejected for lacking a resolvable location.",
		}),
		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ust_import",
			Name:      "points_written_total",
			Help:      "Measurement points handed to the store.",
		}),
		ZipLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ust_import",
			Name:      "zip_lookups_total",
			Help:      "Postal-code lookups by outcome.",
		}, []string{"outcome"}),
		ZipCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ust_import",
			Name:      "zip_cache_total",
			Help:      "Postal-code cache lookups by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ust_import",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete import run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}

	prometheus.MustRegister(
		m.RowsRead,
		m.RowsAccepted,
		m.RowsRejected,
		m.PointsWritten,
		m.ZipLookups,
		m.ZipCache,
		m.RunDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsRead:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ust_import", Name: "rows_read_total"}),
		RowsAccepted:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ust_import", Name: "rows_accepted_total"}),
		RowsRejected:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ust_import", Name: "rows_rejected_total"}),
		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ust_import", Name: "points_written_total"}),
		ZipLookups:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ust_import", Name: "zip_lookups_total"}, []string{"outcome"}),
		ZipCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ust_import", Name: "zip_cache_total"}, []string{"result"}),
		RunDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "ust_import", Name: "run_duration_seconds"}),
	}
}
