package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/exporter/internal/core/domain"
)

var (
	// ExportErrorsTotal counts query engine failures seen while exporting
	ExportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataexport_errors_total",
			Help: "Total number of query engine failures during data export",
		},
		[]string{"kind"},
	)

	// ExportsTotal counts finished exports by outcome
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataexport_exports_total",
			Help: "Total number of finished exports",
		},
		[]string{"status"},
	)

	// RowsExported counts rows written to export files
	RowsExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataexport_rows_total",
			Help: "Total number of rows written to export files",
		},
		[]string{"dataset"},
	)

	// QueryLatency tracks query engine call latency
	QueryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataexport_query_latency_seconds",
			Help:    "Query engine call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dataset"},
	)

	// ExportDuration tracks wall time of a whole export
	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataexport_duration_seconds",
			Help:    "Time taken to assemble one export",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"dataset"},
	)

	// QueueDepth tracks jobs waiting in the queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataexport_queue_depth",
			Help: "Number of export jobs waiting to be processed",
		},
	)

	// ExportsPruned counts expired exports removed by the pruner
	ExportsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataexport_pruned_total",
			Help: "Total number of expired exports removed",
		},
	)

	// DBConnectionPoolUsage tracks the percentage of used database connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataexport_db_connection_pool_usage_percent",
			Help: "Percentage of database connection pool in use",
		},
	)

	// DBConnectionWaits counts connection requests that had to wait for a free slot
	DBConnectionWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataexport_db_connection_waits_total",
			Help: "Database connection requests that waited for the pool",
		},
	)
)

// FailureObserver returns a hook that records an engine failure in the
// error counter and the log.
func FailureObserver(log *slog.Logger) func(domain.FailureKind, string) {
	return func(kind domain.FailureKind, message string) {
		ExportErrorsTotal.WithLabelValues(string(kind)).Inc()
		log.Error("dataexport.error", "kind", kind, "error", message)
	}
}
