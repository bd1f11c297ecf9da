// Package metrics exposes bridge counters and device readings to Prometheus.
//
// A Metrics value owns its own registry, so several bridges (or tests) can run
// in one process without colliding on the default registerer. It implements
// the bridge's Recorder and StateObserver interfaces, and Handler serves the
// registry in the text exposition format.
//
// Exported series:
//
//	eltako_commands_total{class,outcome}
//	eltako_polls_total{result}
//	eltako_poll_duration_seconds
//	eltako_stale_updates_total
//	eltako_devices_managed
//	eltako_device_value{device,field}
//	eltako_device_rssi{device}
package metrics
