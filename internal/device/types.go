package device

import (
	"strings"
	"time"
)

// Class is the closed set of device classes the bridge knows how to drive.
// It is resolved once from the gateway's type string when a device enters
// the registry and never re-derived afterwards.
type Class int

// Device classes.
const (
	ClassUnknown Class = iota
	ClassDimmer
	ClassSwitch
	ClassBlind
	ClassWeather
)

var classNames = map[Class]string{
	ClassUnknown: "unknown",
	ClassDimmer:  "dimmer",
	ClassSwitch:  "switch",
	ClassBlind:   "blind",
	ClassWeather: "weather",
}

// String returns the lower-case class name.
func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return classNames[ClassUnknown]
}

// MarshalText implements encoding.TextMarshaler so classes render by name in JSON.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ClassFromName looks up a class by its canonical name ("dimmer", "blind", ...).
// Used for configuration values; gateway type strings go through ParseClass.
func ClassFromName(name string) (Class, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range classNames {
		if c != ClassUnknown && n == name {
			return c, true
		}
	}
	return ClassUnknown, false
}

// ParseClass resolves a gateway device type string to a Class.
// Matching is case-insensitive on substrings; dimmers are checked before
// switches because several dimmer type names also contain "switch".
func ParseClass(deviceType string) Class {
	t := strings.ToLower(deviceType)
	switch {
	case strings.Contains(t, "dimmer") || strings.HasPrefix(t, "dim"):
		return ClassDimmer
	case containsAny(t, "blind", "shutter", "jalousie", "cover"):
		return ClassBlind
	case strings.Contains(t, "weather"):
		return ClassWeather
	case containsAny(t, "switch", "relay", "actuator"):
		return ClassSwitch
	default:
		return ClassUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// State is a class-specific state record. Implementations are plain values;
// pointer fields inside them are never mutated after construction.
type State interface {
	// Class reports which device class this record belongs to.
	Class() Class
}

// DimmerState is the state of a dimming actuator.
// Canonically On == (Level > 0).
type DimmerState struct {
	On    bool `json:"on"`
	Level int  `json:"level"`
}

// Class implements State.
func (DimmerState) Class() Class { return ClassDimmer }

// SwitchState is the state of a switching relay.
type SwitchState struct {
	On bool `json:"on"`
}

// Class implements State.
func (SwitchState) Class() Class { return ClassSwitch }

// BlindState is the state of a roller blind / shutter actuator.
type BlindState struct {
	Position      int     `json:"position"`
	Syncing       bool    `json:"syncing"`
	RemainingTime float64 `json:"remaining_time"`
	RemainingRuns float64 `json:"remaining_runs"`
}

// Class implements State.
func (BlindState) Class() Class { return ClassBlind }

// WeatherState is a weather station reading. Every field is optional:
// nil means the gateway did not report it.
type WeatherState struct {
	Wind              *float64 `json:"wind,omitempty"`
	RainActive        *bool    `json:"rain,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	Illumination      *float64 `json:"illumination,omitempty"`
	IlluminationEast  *float64 `json:"illumination_east,omitempty"`
	IlluminationSouth *float64 `json:"illumination_south,omitempty"`
	IlluminationWest  *float64 `json:"illumination_west,omitempty"`
}

// Class implements State.
func (WeatherState) Class() Class { return ClassWeather }

// UnknownState is held for devices of an unrecognised class.
type UnknownState struct{}

// Class implements State.
func (UnknownState) Class() Class { return ClassUnknown }

// Device is a single gateway-managed device.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Class     Class     `json:"class"`
	Address   string    `json:"address"`
	RSSI      int       `json:"rssi"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`

	// cmdSeq is the registry sequence of the last command-driven update.
	cmdSeq uint64
}

// Copy returns a copy of the device. State records are values, so a
// shallow copy is sufficient.
func (d *Device) Copy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}

// RawDevice is a device entry as reported by the gateway's state listing.
// Values in State are as decoded from JSON (float64, string, bool).
type RawDevice struct {
	ID      string
	Name    string
	Type    string
	Address string
	State   map[string]any
}

// ClampPercent clamps v into [0,100].
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
