package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// OperationsMeasurement is the measurement operation points are written to.
const OperationsMeasurement = "graystore_operations"

// operationPoint builds the point for one operation.
func operationPoint(database, table, op string, rows int64, d time.Duration, err error, at time.Time) *write.Point {
	result := "success"
	if err != nil {
		result = "error"
	}
	return write.NewPoint(
		OperationsMeasurement,
		map[string]string{
			"database": database,
			"table":    table,
			"op":       op,
			"result":   result,
		},
		map[string]any{
			"rows":        rows,
			"duration_ms": float64(d) / float64(time.Millisecond),
		},
		at,
	)
}

// RecordOperation writes one operation point. It satisfies orm.Recorder.
// Operations seen after Close are only counted.
func (c *Client) RecordOperation(database, table, op string, rows int64, d time.Duration, err error) {
	if !c.IsConnected() {
		c.dropped.Add(1)
		return
	}
	c.writer.WritePoint(operationPoint(database, table, op, rows, d, err, time.Now()))
	c.recorded.Add(1)
}
