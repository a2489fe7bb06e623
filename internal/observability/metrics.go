// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Snapshot metrics
	SnapshotRunsTotal *prometheus.CounterVec
	SnapshotDuration  prometheus.Histogram
	RowsScanned       prometheus.Counter
	MalformedRows     prometheus.Counter
	FillsUsed         prometheus.Counter
	OversellEvents    prometheus.Counter

	// Exchange metrics
	ExchangeRequestLatency *prometheus.HistogramVec
	ExchangeErrors         *prometheus.CounterVec
	FillsFetched           prometheus.Counter
	TokensMinted           *prometheus.CounterVec

	// Ingest metrics
	RowsImported prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_ledger"
	}

	return &Metrics{
		// Snapshot metrics
		SnapshotRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "runs_total",
			Help:      "Total number of snapshot computations by status",
		}, []string{"status"}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "Snapshot computation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RowsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "rows_scanned_total",
			Help:      "Total number of ledger rows scanned",
		}),
		MalformedRows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "malformed_rows_total",
			Help:      "Total number of records dropped by the normalizer",
		}),
		FillsUsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "fills_used_total",
			Help:      "Total number of canonical fills fed to the matcher",
		}),
		OversellEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "oversell_events_total",
			Help:      "Total number of snapshots where sells exceeded lot inventory",
		}),

		// Exchange metrics
		ExchangeRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "request_latency_seconds",
			Help:      "Exchange REST request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ExchangeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "request_errors_total",
			Help:      "Total number of exchange request errors by class",
		}, []string{"class"}),
		FillsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "fills_fetched_total",
			Help:      "Total number of fills fetched from the exchange",
		}),
		TokensMinted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "tokens_minted_total",
			Help:      "Total number of auth tokens minted by algorithm",
		}, []string{"alg"}),

		// Ingest metrics
		RowsImported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_imported_total",
			Help:      "Total number of ledger rows imported",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSnapshotRun records one snapshot computation.
func RecordSnapshotRun(status string, seconds float64) {
	DefaultMetrics.SnapshotRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SnapshotDuration.Observe(seconds)
}

// RecordRowsScanned adds to the rows scanned counter.
func RecordRowsScanned(n int) {
	DefaultMetrics.RowsScanned.Add(float64(n))
}

// RecordMalformedRows adds to the malformed rows counter.
func RecordMalformedRows(n int) {
	DefaultMetrics.MalformedRows.Add(float64(n))
}

// RecordFillsUsed adds to the fills used counter.
func RecordFillsUsed(n int) {
	DefaultMetrics.FillsUsed.Add(float64(n))
}

// RecordOversell increments the oversell events counter.
func RecordOversell() {
	DefaultMetrics.OversellEvents.Inc()
}

// RecordExchangeRequest records latency of one exchange request.
func RecordExchangeRequest(endpoint string, seconds float64) {
	DefaultMetrics.ExchangeRequestLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordExchangeError increments the exchange error counter for a class.
func RecordExchangeError(class string) {
	DefaultMetrics.ExchangeErrors.WithLabelValues(class).Inc()
}

// RecordFillsFetched adds to the fills fetched counter.
func RecordFillsFetched(n int) {
	DefaultMetrics.FillsFetched.Add(float64(n))
}

// RecordTokenMinted increments the token mint counter for an algorithm.
func RecordTokenMinted(alg string) {
	DefaultMetrics.TokensMinted.WithLabelValues(alg).Inc()
}

// RecordRowsImported adds to the rows imported counter.
func RecordRowsImported(n int) {
	DefaultMetrics.RowsImported.Add(float64(n))
}
