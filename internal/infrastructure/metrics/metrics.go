package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

const namespace = "eltako"

// Poll results used as the "result" label.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics records bridge activity into a private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	stale        prometheus.Counter
	devices      prometheus.Gauge
	deviceValue  *prometheus.GaugeVec
	deviceRSSI   *prometheus.GaugeVec
}

// New creates and registers all collectors. Go runtime and process
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound device commands by class and outcome.",
		}, []string{"class", "outcome"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Gateway state polls by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of gateway state polls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_updates_total",
			Help:      "Polled device states discarded because a newer command had been applied.",
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_managed",
			Help:      "Devices currently held in the registry.",
		}),
		deviceValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_value",
			Help:      "Last known numeric device reading.",
		}, []string{"device", "field"}),
		deviceRSSI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_rssi",
			Help:      "Last reported signal strength in percent.",
		}, []string{"device"}),
	}

	m.registry.MustRegister(
		m.commands,
		m.polls,
		m.pollDuration,
		m.stale,
		m.devices,
		m.deviceValue,
		m.deviceRSSI,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CommandHandled counts one command outcome.
func (m *Metrics) CommandHandled(class, outcome string) {
	m.commands.WithLabelValues(class, outcome).Inc()
}

// PollCompleted counts a poll and observes its duration.
func (m *Metrics) PollCompleted(duration time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(duration.Seconds())
}

// StaleUpdates adds n discarded poll states.
func (m *Metrics) StaleUpdates(n int) {
	m.stale.Add(float64(n))
}

// DevicesManaged sets the registry size.
func (m *Metrics) DevicesManaged(n int) {
	m.devices.Set(float64(n))
}

// ObserveState updates the gauges of one device snapshot.
func (m *Metrics) ObserveState(d *device.Device) {
	m.deviceRSSI.WithLabelValues(d.ID).Set(float64(d.RSSI))
	for field, v := range device.Readings(d.State) {
		m.deviceValue.WithLabelValues(d.ID, field).Set(v)
	}
}

// ForgetDevice removes every series belonging to a device.
func (m *Metrics) ForgetDevice(id string) {
	m.deviceRSSI.DeleteLabelValues(id)
	m.deviceValue.DeletePartialMatch(prometheus.Labels{"device": id})
}
