package eltako

import (
	"encoding/json"
	"strings"

	"github.com/nerrad567/eltako2mqtt/internal/device"
	"github.com/nerrad567/eltako2mqtt/internal/infrastructure/mqtt"
)

// Home Assistant component names.
const (
	ComponentLight        = "light"
	ComponentSwitch       = "switch"
	ComponentCover        = "cover"
	ComponentSensor       = "sensor"
	ComponentBinarySensor = "binary_sensor"
)

const (
	manufacturer     = "Eltako"
	stateClassLatest = "measurement"
)

// Descriptor is a single discovery config ready to publish retained.
// Descriptors are values; the payload is never modified after creation.
type Descriptor struct {
	Component string
	UniqueID  string
	Topic     string
	Payload   []byte
}

// discoveryDevice groups every entity of one gateway device in the hub.
type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// entityConfig is the discovery payload. Field order is fixed so that
// marshalling the same device always produces the same bytes.
type entityConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	AvailabilityTopic   string `json:"availability_topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`

	CommandTopic string `json:"command_topic,omitempty"`
	StateTopic   string `json:"state_topic,omitempty"`
	PayloadOn    string `json:"payload_on,omitempty"`
	PayloadOff   string `json:"payload_off,omitempty"`

	BrightnessCommandTopic string `json:"brightness_command_topic,omitempty"`
	BrightnessStateTopic   string `json:"brightness_state_topic,omitempty"`
	BrightnessScale        int    `json:"brightness_scale,omitempty"`

	PositionTopic    string `json:"position_topic,omitempty"`
	SetPositionTopic string `json:"set_position_topic,omitempty"`
	PayloadOpen      string `json:"payload_open,omitempty"`
	PayloadClose     string `json:"payload_close,omitempty"`
	PayloadStop      string `json:"payload_stop,omitempty"`

	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	Icon              string `json:"icon,omitempty"`

	Device discoveryDevice `json:"device"`
}

// weatherSensor describes one of the fixed weather station entities.
type weatherSensor struct {
	field       string
	name        string
	component   string
	unit        string
	deviceClass string
	icon        string
}

// weatherSensors is the fixed entity table for weather stations.
var weatherSensors = []weatherSensor{
	{FieldWind, "Wind", ComponentSensor, "m/s", "wind_speed", "mdi:weather-windy"},
	{FieldRain, "Rain", ComponentBinarySensor, "", "moisture", "mdi:weather-pouring"},
	{FieldTemperature, "Temperature", ComponentSensor, "°C", "temperature", "mdi:thermometer"},
	{FieldIllumination, "Illumination", ComponentSensor, "lx", "illuminance", "mdi:brightness-5"},
	{FieldIlluminationEast, "Illumination East", ComponentSensor, "lx", "illuminance", "mdi:weather-sunny"},
	{FieldIlluminationSouth, "Illumination South", ComponentSensor, "lx", "illuminance", "mdi:weather-sunny"},
	{FieldIlluminationWest, "Illumination West", ComponentSensor, "lx", "illuminance", "mdi:weather-sunny"},
}

// Discovery generates the discovery descriptors for d.
//
// Dimmers, switches and blinds yield one descriptor, weather stations seven.
// Unknown devices yield none. The result depends only on s and d.
func Discovery(s Settings, d *device.Device) []Descriptor {
	s = s.withDefaults()
	t := s.Topics
	base := entityConfig{
		Name:                d.Name,
		UniqueID:            uniqueID(t.Namespace, d.ID, ""),
		AvailabilityTopic:   t.BridgeStatus(),
		PayloadAvailable:    mqtt.PayloadOnline,
		PayloadNotAvailable: mqtt.PayloadOffline,
		Device: discoveryDevice{
			Identifiers:  []string{uniqueID(t.Namespace, d.ID, "")},
			Name:         d.Name,
			Manufacturer: manufacturer,
			Model:        d.Type,
			SWVersion:    s.Version,
		},
	}
	if base.Name == "" {
		base.Name = d.ID
		base.Device.Name = d.ID
	}

	switch d.Class {
	case device.ClassDimmer:
		cfg := base
		cfg.CommandTopic = t.DeviceCommand(d.ID)
		cfg.StateTopic = t.DeviceState(d.ID, FieldState)
		cfg.PayloadOn = payloadOn
		cfg.PayloadOff = payloadOff
		cfg.BrightnessCommandTopic = t.DeviceCommand(d.ID)
		cfg.BrightnessStateTopic = t.DeviceState(d.ID, FieldBrightness)
		cfg.BrightnessScale = s.DimmerScale.BrightnessScale()
		return []Descriptor{descriptor(s, ComponentLight, cfg)}

	case device.ClassSwitch:
		cfg := base
		cfg.CommandTopic = t.DeviceCommand(d.ID)
		cfg.StateTopic = t.DeviceState(d.ID, FieldState)
		cfg.PayloadOn = payloadOn
		cfg.PayloadOff = payloadOff
		return []Descriptor{descriptor(s, ComponentSwitch, cfg)}

	case device.ClassBlind:
		cfg := base
		cfg.CommandTopic = t.DeviceCommand(d.ID)
		cfg.PositionTopic = t.DeviceState(d.ID, FieldState)
		cfg.SetPositionTopic = t.DeviceCommand(d.ID)
		cfg.PayloadOpen = cmdOpen
		cfg.PayloadClose = cmdClose
		cfg.PayloadStop = cmdStop
		return []Descriptor{descriptor(s, ComponentCover, cfg)}

	case device.ClassWeather:
		out := make([]Descriptor, 0, len(weatherSensors))
		for _, ws := range weatherSensors {
			cfg := base
			cfg.Name = ws.name
			cfg.UniqueID = uniqueID(t.Namespace, d.ID, ws.field)
			cfg.StateTopic = t.DeviceState(d.ID, ws.field)
			cfg.DeviceClass = ws.deviceClass
			cfg.UnitOfMeasurement = ws.unit
			cfg.Icon = ws.icon
			if ws.component == ComponentBinarySensor {
				cfg.PayloadOn = "true"
				cfg.PayloadOff = "false"
			} else {
				cfg.StateClass = stateClassLatest
			}
			out = append(out, descriptor(s, ws.component, cfg))
		}
		return out

	default:
		return nil
	}
}

func descriptor(s Settings, component string, cfg entityConfig) Descriptor {
	// entityConfig holds only strings, ints and a string slice; Marshal cannot fail.
	payload, _ := json.Marshal(cfg) //nolint:errcheck // see above
	return Descriptor{
		Component: component,
		UniqueID:  cfg.UniqueID,
		Topic:     mqtt.Discovery(s.DiscoveryPrefix, component, cfg.UniqueID),
		Payload:   payload,
	}
}

// uniqueID builds "<ns>_<id>[_<field>]" restricted to characters that are
// valid in a discovery topic segment.
func uniqueID(namespace, id, field string) string {
	if namespace == "" {
		namespace = mqtt.DefaultNamespace
	}
	parts := []string{sanitizeID(namespace), sanitizeID(id)}
	if field != "" {
		parts = append(parts, field)
	}
	return strings.Join(parts, "_")
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
