// Package influxdb records device readings in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Every state snapshot
// the bridge publishes becomes one point in the "device_state" measurement,
// tagged by device and class, with a field per numeric reading.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	// Registered as a bridge StateObserver.
//	client.ObserveState(d)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; async write errors are
// delivered to the callback set with SetOnError.
package influxdb
