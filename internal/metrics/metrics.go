// Package metrics has prometheus metric variables/functions.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOperation = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graystore_operation_duration_seconds",
			Help:    "Duration of record operations.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{
			"op",
			"table",
			"result",
		},
	)
	metricRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graystore_operation_rows_total",
			Help: "Rows written, read or deleted by record operations.",
		},
		[]string{
			"op",
			"table",
		},
	)
	metricEnsure = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graystore_table_ensure_total",
			Help: "Table ensure runs by outcome (created, migrated, current).",
		},
		[]string{
			"table",
			"outcome",
		},
	)
	metricConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graystore_open_databases",
			Help: "Number of open database files.",
		},
	)
)

// Result classifies an operation error for metric labels.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// ObserveOperation records the duration and row count of one operation.
func ObserveOperation(op, table string, rows int64, err error, start time.Time) {
	metricOperation.WithLabelValues(op, table, Result(err)).Observe(float64(time.Since(start)) / float64(time.Second))
	if err == nil && rows > 0 {
		metricRows.WithLabelValues(op, table).Add(float64(rows))
	}
}

// CountEnsure records the outcome of a table ensure.
func CountEnsure(table, outcome string) {
	metricEnsure.WithLabelValues(table, outcome).Inc()
}

// SetOpenDatabases sets the number of open database files.
func SetOpenDatabases(n int) {
	metricConnections.Set(float64(n))
}
