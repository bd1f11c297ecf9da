package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for eltako2mqtt. Every bridge topic lives under a single
// namespace (default "eltako"):
//
//	<ns>/<deviceId>/set        inbound commands
//	<ns>/<deviceId>/<field>    retained device state
//	<ns>/bridge/status         retained availability ("online"/"offline", also the LWT)
//	<ns>/bridge/health         retained health report
//
// Discovery configs live under the hub's own prefix:
//
//	<prefix>/<component>/<uniqueId>/config
const (
	// DefaultNamespace is used when Topics.Namespace is empty.
	DefaultNamespace = "eltako"

	// PayloadOnline is the retained availability payload while the bridge runs.
	PayloadOnline = "online"

	// PayloadOffline is the retained availability payload after shutdown or crash.
	PayloadOffline = "offline"

	commandSuffix = "set"
	bridgeSegment = "bridge"
)

// Topics builds topic names for one namespace.
//
//	topics := mqtt.Topics{Namespace: "eltako"}
//	topics.DeviceState("12", "brightness") // "eltako/12/brightness"
type Topics struct {
	Namespace string
}

func (t Topics) ns() string {
	if t.Namespace == "" {
		return DefaultNamespace
	}
	return t.Namespace
}

// DeviceCommand returns the command topic for a device.
//
// Example: eltako/12/set
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", t.ns(), deviceID, commandSuffix)
}

// AllDeviceCommands returns the wildcard subscription for every device command.
//
// Example: eltako/+/set
func (t Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/+/%s", t.ns(), commandSuffix)
}

// DeviceState returns the retained state topic for one field of a device.
//
// Example: eltako/12/state
func (t Topics) DeviceState(deviceID, field string) string {
	return fmt.Sprintf("%s/%s/%s", t.ns(), deviceID, field)
}

// BridgeStatus returns the availability topic.
//
// Example: eltako/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/%s/status", t.ns(), bridgeSegment)
}

// BridgeHealth returns the health report topic.
//
// Example: eltako/bridge/health
func (t Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/%s/health", t.ns(), bridgeSegment)
}

// ParseDeviceCommand extracts the device ID from a command topic.
// It returns false for any topic that is not <ns>/<id>/set.
func (t Topics) ParseDeviceCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.ns()+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/"+commandSuffix)
	if !ok || id == "" || strings.Contains(id, "/") || id == bridgeSegment {
		return "", false
	}
	return id, true
}

// Discovery returns the retained discovery config topic for an entity.
//
// Example: homeassistant/light/eltako_12/config
func Discovery(prefix, component, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/config", prefix, component, uniqueID)
}
