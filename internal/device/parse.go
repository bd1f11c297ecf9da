package device

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Gateway state keys.
const (
	keyState        = "state"
	keyDim          = "dim"
	keyPosition     = "pos"
	keySync         = "sync"
	keyRemainRuns   = "rv"
	keyRemainTime   = "rt"
	keyRSSI         = "rssi"
	keyWind         = "wind"
	keyRain         = "rain"
	keyTemperature  = "temperature"
	keyIllumination = "illumination"
	keySunEast      = "sunEast"
	keySunSouth     = "sunSouth"
	keySunWest      = "sunWest"
)

const fullLevel = 100

// ParseState builds the state record for class from a raw gateway state map.
// Missing or malformed fields fall back to zero values (weather fields stay nil).
func ParseState(class Class, raw map[string]any) State {
	return ParseStateAfter(class, raw, nil)
}

// ParseStateAfter is ParseState for a device whose last known state is prev.
//
// A dimmer record always satisfies On == (Level > 0). A dimmer reported off
// gets level 0; one reported on without a level keeps its previous level,
// or full brightness when there is none.
func ParseStateAfter(class Class, raw map[string]any, prev State) State {
	switch class {
	case ClassDimmer:
		level := 0
		if v, ok := number(raw[keyDim]); ok {
			level = ClampPercent(int(math.Round(v)))
		}
		on := level > 0
		if v, ok := boolean(raw[keyState]); ok {
			on = v
		}
		switch {
		case !on:
			level = 0
		case level == 0:
			level = fullLevel
			if last, ok := prev.(DimmerState); ok && last.Level > 0 {
				level = last.Level
			}
		}
		return DimmerState{On: on, Level: level}

	case ClassSwitch:
		on, _ := boolean(raw[keyState])
		return SwitchState{On: on}

	case ClassBlind:
		st := BlindState{}
		if v, ok := number(raw[keyPosition]); ok {
			st.Position = ClampPercent(int(math.Round(v)))
		}
		st.Syncing, _ = boolean(raw[keySync])
		st.RemainingTime, _ = number(raw[keyRemainTime])
		st.RemainingRuns, _ = number(raw[keyRemainRuns])
		return st

	case ClassWeather:
		st := WeatherState{
			Wind:              optNumber(raw, keyWind),
			Temperature:       optNumber(raw, keyTemperature),
			Illumination:      optNumber(raw, keyIllumination),
			IlluminationEast:  optNumber(raw, keySunEast),
			IlluminationSouth: optNumber(raw, keySunSouth),
			IlluminationWest:  optNumber(raw, keySunWest),
		}
		if v, ok := raw[keyRain]; ok {
			if b, ok := boolean(v); ok {
				st.RainActive = &b
			}
		}
		return st

	default:
		return UnknownState{}
	}
}

// ParseRSSI extracts the signal strength percentage, 0 when absent.
func ParseRSSI(raw map[string]any) int {
	v, ok := number(raw[keyRSSI])
	if !ok {
		return 0
	}
	return int(math.Round(v))
}

func optNumber(raw map[string]any, key string) *float64 {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	f, ok := number(v)
	if !ok {
		return nil
	}
	return &f
}

// number converts a JSON-decoded value into a float64.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// boolean accepts bools, "true"/"false"/"on"/"off"/"1"/"0" and numbers (non-zero is true).
func boolean(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "on", "yes", "1":
			return true, true
		case "false", "off", "no", "0":
			return false, true
		}
		if f, ok := number(b); ok {
			return f != 0, true
		}
		return false, false
	default:
		if f, ok := number(v); ok {
			return f != 0, true
		}
		return false, false
	}
}
