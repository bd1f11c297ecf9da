package eltako

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// HealthStatus is the overall state reported on the health topic.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded" // MQTT down or last poll failed
	HealthStarting HealthStatus = "starting" // no poll has finished yet
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained to <ns>/bridge/health.
type HealthMessage struct {
	Bridge         string         `json:"bridge"`
	Timestamp      time.Time      `json:"timestamp"`
	Status         HealthStatus   `json:"status"`
	Version        string         `json:"version"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	Gateway        *GatewayHealth `json:"gateway,omitempty"`
	Statistics     *Stats         `json:"statistics,omitempty"`
	DevicesManaged int            `json:"devices_managed"`
	Reason         string         `json:"reason,omitempty"`
}

// GatewayHealth summarises gateway reachability.
type GatewayHealth struct {
	Host      string     `json:"host,omitempty"`
	Status    string     `json:"status"`
	LastPoll  *time.Time `json:"last_poll,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// HealthPublisher is the subset of the MQTT client the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsSource provides the counters included in each report.
type StatsSource interface {
	Stats() Stats
}

// HealthReporterConfig configures a HealthReporter. A zero Interval
// means DefaultHealthInterval; an empty Topic disables publishing.
type HealthReporterConfig struct {
	BridgeID    string
	Version     string
	GatewayHost string
	Topic       string
	Interval    time.Duration
	QoS         byte
	Publisher   HealthPublisher
	Source      StatsSource
}

// HealthReporter periodically publishes a HealthMessage.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter returns a reporter; nothing is published until Start.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	if cfg.BridgeID == "" {
		cfg.BridgeID = "eltako"
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends the loop and publishes a final "stopping" report. Later calls
// do nothing.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		if err := h.publishStatus(HealthStopping, ""); err != nil {
			h.logError("failed to publish final health", err)
		}
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) stats() Stats {
	if h.cfg.Source == nil {
		return Stats{}
	}
	return h.cfg.Source.Stats()
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	stats := h.stats()
	if stats.PollsOK == 0 && stats.PollsFailed == 0 {
		return HealthStarting, "waiting for first gateway poll"
	}
	if stats.LastPollError != "" {
		return HealthDegraded, "gateway unreachable"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	stats := h.stats()

	gw := &GatewayHealth{
		Host:      h.cfg.GatewayHost,
		Status:    "unknown",
		LastError: stats.LastPollError,
	}
	if !stats.LastPoll.IsZero() {
		lastPoll := stats.LastPoll.UTC()
		gw.LastPoll = &lastPoll
		gw.Status = "reachable"
		if stats.LastPollError != "" {
			gw.Status = "unreachable"
		}
	}

	return HealthMessage{
		Bridge:         h.cfg.BridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.cfg.Version,
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		Gateway:        gw,
		Statistics:     &stats,
		DevicesManaged: stats.Devices,
		Reason:         reason,
	}
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil || h.cfg.Topic == "" {
		return nil
	}

	payload, err := json.Marshal(h.buildMessage(status, reason))
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, h.cfg.QoS, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
