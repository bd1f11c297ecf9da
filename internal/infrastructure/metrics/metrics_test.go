package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

func TestMetrics_Commands(t *testing.T) {
	m := New(false)
	m.CommandHandled("dimmer", "sent")
	m.CommandHandled("dimmer", "sent")
	m.CommandHandled("blind", "suppressed")

	expected := `
	# HELP eltako_commands_total Inbound device commands by class and outcome.
	# TYPE eltako_commands_total counter
	eltako_commands_total{class="blind",outcome="suppressed"} 1
	eltako_commands_total{class="dimmer",outcome="sent"} 2
	`
	if err := testutil.CollectAndCompare(m.commands, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected collecting result:\n%s", err)
	}
}

func TestMetrics_Polls(t *testing.T) {
	m := New(false)
	m.PollCompleted(80*time.Millisecond, nil)
	m.PollCompleted(3*time.Second, errors.New("timeout"))

	expected := `
	# HELP eltako_polls_total Gateway state polls by result.
	# TYPE eltako_polls_total counter
	eltako_polls_total{result="error"} 1
	eltako_polls_total{result="ok"} 1
	`
	if err := testutil.CollectAndCompare(m.polls, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected collecting result:\n%s", err)
	}
	if n := testutil.CollectAndCount(m.pollDuration); n != 1 {
		t.Errorf("poll duration series = %d, want 1", n)
	}
}

func TestMetrics_RegistryGauges(t *testing.T) {
	m := New(false)
	m.StaleUpdates(2)
	m.StaleUpdates(1)
	m.DevicesManaged(5)

	if got := testutil.ToFloat64(m.stale); got != 3 {
		t.Errorf("stale = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.devices); got != 5 {
		t.Errorf("devices = %v, want 5", got)
	}
}

func TestMetrics_ObserveState(t *testing.T) {
	m := New(false)
	m.ObserveState(&device.Device{
		ID:    "7",
		Class: device.ClassBlind,
		RSSI:  64,
		State: device.BlindState{Position: 57},
	})

	expected := `
	# HELP eltako_device_value Last known numeric device reading.
	# TYPE eltako_device_value gauge
	eltako_device_value{device="7",field="position"} 57
	eltako_device_value{device="7",field="remaining_runs"} 0
	eltako_device_value{device="7",field="remaining_time"} 0
	eltako_device_value{device="7",field="syncing"} 0
	`
	if err := testutil.CollectAndCompare(m.deviceValue, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected collecting result:\n%s", err)
	}
	if got := testutil.ToFloat64(m.deviceRSSI.WithLabelValues("7")); got != 64 {
		t.Errorf("rssi = %v, want 64", got)
	}

	m.ForgetDevice("7")
	if n := testutil.CollectAndCount(m.deviceValue); n != 0 {
		t.Errorf("device_value series after ForgetDevice = %d, want 0", n)
	}
	if n := testutil.CollectAndCount(m.deviceRSSI); n != 0 {
		t.Errorf("device_rssi series after ForgetDevice = %d, want 0", n)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New(true)
	m.CommandHandled("switch", "sent")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`eltako_commands_total{class="switch",outcome="sent"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
