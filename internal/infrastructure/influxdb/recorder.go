package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementStoreOps is the measurement for registry operations.
const MeasurementStoreOps = "patient_store_ops"

// OperationPoint builds the point recorded for one registry operation.
func OperationPoint(op, outcome string, d time.Duration, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementStoreOps,
		map[string]string{
			"op":      op,
			"outcome": outcome,
		},
		map[string]any{
			"duration_ms": float64(d.Microseconds()) / 1000,
		},
		at,
	)
}

// RecordOperation queues an operation point. It satisfies patient.Recorder
// and is a no-op once the client is closed.
func (c *Client) RecordOperation(op, outcome string, d time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(OperationPoint(op, outcome, d, time.Now()))
}
