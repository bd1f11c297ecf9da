package eltako

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type staticStats struct {
	stats Stats
}

func (s *staticStats) Stats() Stats { return s.stats }

func newTestReporter(client *MockMQTTClient, src StatsSource) *HealthReporter {
	return NewHealthReporter(HealthReporterConfig{
		BridgeID:    "eltako",
		Version:     "1.2.3",
		GatewayHost: "minisafe.local",
		Topic:       "eltako/bridge/health",
		Interval:    time.Hour,
		QoS:         1,
		Publisher:   client,
		Source:      src,
	})
}

func lastHealth(t *testing.T, client *MockMQTTClient) HealthMessage {
	t.Helper()
	raw, ok := client.Last("eltako/bridge/health")
	if !ok {
		t.Fatal("no health message published")
	}
	var msg HealthMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("health payload is not JSON: %v", err)
	}
	return msg
}

func TestHealthReporter_DetermineStatus(t *testing.T) {
	lastPoll := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		connected  bool
		stats      Stats
		wantStatus HealthStatus
		wantGW     string
	}{
		{"mqtt disconnected", false, Stats{PollsOK: 3, LastPoll: lastPoll}, HealthDegraded, "reachable"},
		{"no poll yet", true, Stats{}, HealthStarting, "unknown"},
		{"gateway unreachable", true, Stats{PollsFailed: 1, LastPoll: lastPoll, LastPollError: "timeout"}, HealthDegraded, "unreachable"},
		{"healthy", true, Stats{PollsOK: 1, Devices: 4, LastPoll: lastPoll}, HealthHealthy, "reachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockMQTTClient()
			h := newTestReporter(client, &staticStats{stats: tt.stats})

			client.SetConnected(tt.connected)
			status, _ := h.determineStatus()
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}

			msg := h.buildMessage(status, "")
			if msg.Gateway == nil || msg.Gateway.Status != tt.wantGW {
				t.Errorf("gateway = %+v, want status %q", msg.Gateway, tt.wantGW)
			}
			if msg.DevicesManaged != tt.stats.Devices {
				t.Errorf("DevicesManaged = %d, want %d", msg.DevicesManaged, tt.stats.Devices)
			}
		})
	}
}

func TestHealthReporter_PublishNow(t *testing.T) {
	client := NewMockMQTTClient()
	src := &staticStats{stats: Stats{PollsOK: 2, Devices: 3, LastPoll: time.Now()}}
	h := newTestReporter(client, src)

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	msg := lastHealth(t, client)
	if msg.Status != HealthHealthy || msg.Bridge != "eltako" || msg.Version != "1.2.3" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Gateway.Host != "minisafe.local" || msg.Gateway.LastPoll == nil {
		t.Errorf("gateway = %+v", msg.Gateway)
	}
	if msg.Statistics == nil || msg.Statistics.PollsOK != 2 {
		t.Errorf("statistics = %+v", msg.Statistics)
	}

	published := client.GetPublished()
	if !published[len(published)-1].Retained {
		t.Error("health message not retained")
	}
}

func TestHealthReporter_StartingAndStopping(t *testing.T) {
	client := NewMockMQTTClient()
	h := newTestReporter(client, nil)

	if err := h.PublishStarting(); err != nil {
		t.Fatal(err)
	}
	if msg := lastHealth(t, client); msg.Status != HealthStarting || msg.Reason == "" {
		t.Errorf("starting message = %+v", msg)
	}

	h.Start(context.Background())
	h.Stop()
	h.Stop()

	if msg := lastHealth(t, client); msg.Status != HealthStopping {
		t.Errorf("final status = %q, want stopping", msg.Status)
	}
	if n := client.Count("eltako/bridge/health"); n != 2 {
		t.Errorf("health published %d times, want 2", n)
	}
}

func TestHealthReporter_PeriodicReports(t *testing.T) {
	client := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		Topic:     "eltako/bridge/health",
		Interval:  10 * time.Millisecond,
		Publisher: client,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	waitFor(t, "periodic health", func() bool { return client.Count("eltako/bridge/health") >= 2 })
}

func TestHealthReporter_NoTopicIsNoop(t *testing.T) {
	client := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{Publisher: client})
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() error = %v", err)
	}
	if len(client.GetPublished()) != 0 {
		t.Error("published without a topic")
	}
}
