//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectAndClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "eltako2mqtt-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Publish("eltako/test", []byte("x"), 1, false); err != ErrNotConnected {
		t.Errorf("Publish() after Close = %v, want ErrNotConnected", err)
	}
}

func TestIntegration_AvailabilityRetained(t *testing.T) {
	cfg := testConfig()
	cfg.Namespace = "eltako-int-avail"
	cfg.Broker.ClientID = "eltako2mqtt-int-avail"

	bridge, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer bridge.Close()

	observerCfg := testConfig()
	observerCfg.Namespace = "eltako-int-observer"
	observerCfg.Broker.ClientID = "eltako2mqtt-int-observer"
	observer, err := Connect(observerCfg)
	if err != nil {
		t.Fatalf("Connect() observer error = %v", err)
	}
	defer observer.Close()

	got := make(chan string, 4)
	err = observer.Subscribe(bridge.Topics().BridgeStatus(), 1, func(_ string, payload []byte) error {
		got <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case payload := <-got:
		if payload != PayloadOnline {
			t.Errorf("availability = %q, want %q", payload, PayloadOnline)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no retained availability received")
	}
}

func TestIntegration_WildcardRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Namespace = "eltako-int-rt"
	cfg.Broker.ClientID = "eltako2mqtt-int-rt"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := client.Topics()
	got := make(chan string, 1)
	err = client.Subscribe(topics.AllDeviceCommands(), 1, func(topic string, payload []byte) error {
		if id, ok := topics.ParseDeviceCommand(topic); ok {
			got <- id + "=" + string(payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topics.AllDeviceCommands()) {
		t.Error("subscription not tracked")
	}

	if err := client.Publish(topics.DeviceCommand("7"), []byte("on"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-got:
		if msg != "7=on" {
			t.Errorf("received %q, want 7=on", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("command not received")
	}
}
