// Package metrics holds the Prometheus collectors of the sink.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// batchesTotal counts write attempts of whole batches by outcome.
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdtpsink_batches_total",
			Help: "Total number of batch writes by status (committed, rolled_back, rollback_failed)",
		},
		[]string{"status"},
	)

	// recordsWrittenTotal counts records flushed per destination table (committed batches only).
	recordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdtpsink_records_written_total",
			Help: "Total number of records written per destination table",
		},
		[]string{"table"},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tdtpsink_batch_duration_seconds",
			Help:    "Duration of a batch write including commit or rollback",
			Buckets: prometheus.DefBuckets,
		},
	)

	ddlStatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdtpsink_ddl_statements_total",
			Help: "Total number of DDL statements issued by schema reconciliation",
		},
		[]string{"dialect"},
	)

	// connectionAttemptsTotal counts attempts to open the cached database connection.
	connectionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdtpsink_connection_attempts_total",
			Help: "Total number of database connection attempts by result (ok, failed)",
		},
		[]string{"result"},
	)

	retriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tdtpsink_batch_retries_total",
			Help: "Total number of batch retries after retryable failures",
		},
	)
)

// Batch statuses
const (
	StatusCommitted      = "committed"
	StatusRolledBack     = "rolled_back"
	StatusRollbackFailed = "rollback_failed"
)

// ObserveBatch records the outcome and duration of one batch write.
func ObserveBatch(status string, d time.Duration) {
	batchesTotal.WithLabelValues(status).Inc()
	batchDuration.Observe(d.Seconds())
}

// AddRecordsWritten adds n committed records for table.
func AddRecordsWritten(table string, n int) {
	recordsWrittenTotal.WithLabelValues(table).Add(float64(n))
}

// AddDDLStatements adds n executed DDL statements for dialect.
func AddDDLStatements(dialect string, n int) {
	ddlStatementsTotal.WithLabelValues(dialect).Add(float64(n))
}

// IncConnectionAttempt records one connection attempt.
func IncConnectionAttempt(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	connectionAttemptsTotal.WithLabelValues(result).Inc()
}

// IncRetry records one batch retry.
func IncRetry() {
	retriesTotal.Inc()
}
