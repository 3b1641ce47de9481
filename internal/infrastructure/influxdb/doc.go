// Package influxdb records graystore operation statistics in InfluxDB.
//
// Every orm operation becomes one point in the graystore_operations
// measurement:
//
//	graystore_operations,database=<file>,op=<op>,result=<success|error>,service=graystore,table=<table> rows=<n>i,duration_ms=<ms>
//
// Writes are non-blocking and batched by the client library at millisecond
// precision. Rejected batches are counted in Stats and reported through
// SetOnError; operations recorded after Close are counted as dropped.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	manager.SetRecorder(client)
package influxdb
