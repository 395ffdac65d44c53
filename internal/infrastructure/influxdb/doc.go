// Package influxdb records patient registry operation telemetry in InfluxDB.
//
// Each registry operation (register, list_all, execute_raw) becomes one point
// in the patient_store_ops measurement, tagged with the operation and its
// outcome and carrying the duration in milliseconds. No record contents or
// SQL text are written.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    return err
//	}
//	if client != nil {
//	    defer client.Close()
//	    svc.SetRecorder(client)
//	}
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; asynchronous write errors go to the SetOnError callback.
package influxdb
