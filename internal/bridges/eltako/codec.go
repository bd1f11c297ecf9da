package eltako

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

// WireCommand is the literal command token sent to the gateway's SendSC
// function (e.g. "dimTo50", "moveup").
type WireCommand string

// Wire command tokens.
const (
	WireOn       WireCommand = "on"
	WireOff      WireCommand = "off"
	WireToggle   WireCommand = "toggle"
	WireMoveUp   WireCommand = "moveup"
	WireMoveDown WireCommand = "movedown"
	WireStop     WireCommand = "stop"

	wireDimToPrefix  = "dimTo"
	wireMoveToPrefix = "moveTo"
)

// Normalised inbound command tokens.
const (
	cmdOn     = "on"
	cmdOff    = "off"
	cmdToggle = "toggle"
	cmdOpen   = "open"
	cmdUp     = "up"
	cmdClose  = "close"
	cmdDown   = "down"
	cmdStop   = "stop"
)

// Dimmer input bounds.
const (
	maxBrightness = 255
	maxPercent    = 100
)

// DimmerScale selects how a bare numeric dimmer payload is interpreted.
type DimmerScale string

const (
	// ScaleBrightness treats any value in [0,255] as an 8-bit brightness.
	ScaleBrightness DimmerScale = "brightness"

	// ScaleAuto treats [0,100] as a direct percentage and (100,255] as brightness.
	ScaleAuto DimmerScale = "auto"
)

// ParseDimmerScale validates a scale name. Empty means ScaleBrightness.
func ParseDimmerScale(s string) (DimmerScale, error) {
	switch DimmerScale(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScaleBrightness:
		return ScaleBrightness, nil
	case ScaleAuto:
		return ScaleAuto, nil
	default:
		return "", fmt.Errorf("unknown dimmer scale %q", s)
	}
}

// BrightnessScale is the brightness range advertised to the hub. Under
// ScaleAuto the hub is told to work in percent, the range the codec reads
// as a direct level.
func (s DimmerScale) BrightnessScale() int {
	if s == ScaleAuto {
		return maxPercent
	}
	return maxBrightness
}

// Brightness converts a level to the value published on the brightness
// state topic, in the same range as BrightnessScale.
func (s DimmerScale) Brightness(level int) int {
	if s == ScaleAuto {
		return device.ClampPercent(level)
	}
	return LevelToBrightness(level)
}

// classCodec holds the encode/decode pair for one device class.
type classCodec struct {
	encode func(c *Codec, cmd string) (WireCommand, error)
	decode func(prev device.State, wire WireCommand) (device.State, error)
}

// codecs is indexed by device class. Classes without an entry are read-only.
var codecs = map[device.Class]classCodec{
	device.ClassDimmer: {encode: (*Codec).encodeDimmer, decode: decodeDimmer},
	device.ClassSwitch: {encode: (*Codec).encodeSwitch, decode: decodeSwitch},
	device.ClassBlind:  {encode: (*Codec).encodeBlind, decode: decodeBlind},
}

// Codec maps normalised commands to wire commands and back to state records.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	scale DimmerScale
}

// NewCodec creates a codec using the given dimmer scale.
func NewCodec(scale DimmerScale) *Codec {
	if scale == "" {
		scale = ScaleBrightness
	}
	return &Codec{scale: scale}
}

// Encode translates an inbound command for d into a wire command.
//
// Errors wrap ErrUnsupportedCommand or ErrOutOfRange.
func (c *Codec) Encode(d *device.Device, cmd string) (WireCommand, error) {
	entry, ok := codecs[d.Class]
	if !ok {
		return "", fmt.Errorf("%w: %s devices are read-only", ErrUnsupportedCommand, d.Class)
	}
	return entry.encode(c, normalizeCommand(cmd))
}

// Decode computes the state record that results from the gateway accepting
// wire for d. The previous state is taken from d.
func (c *Codec) Decode(d *device.Device, wire WireCommand) (device.State, error) {
	entry, ok := codecs[d.Class]
	if !ok {
		return nil, fmt.Errorf("%w: %s devices are read-only", ErrUnsupportedCommand, d.Class)
	}
	return entry.decode(d.State, wire)
}

func (c *Codec) encodeDimmer(cmd string) (WireCommand, error) {
	switch cmd {
	case cmdOn:
		return WireOn, nil
	case cmdOff:
		return WireOff, nil
	}

	level, err := c.dimmerLevel(cmd)
	if err != nil {
		return "", err
	}
	if level == 0 {
		return WireOff, nil
	}
	return WireCommand(wireDimToPrefix + strconv.Itoa(level)), nil
}

// dimmerLevel converts a numeric dimmer payload into a percentage.
func (c *Codec) dimmerLevel(cmd string) (int, error) {
	if pct, ok := strings.CutSuffix(cmd, "%"); ok {
		v, err := parseNumber(pct)
		if err != nil {
			return 0, err
		}
		if v < 0 || v > maxPercent {
			return 0, fmt.Errorf("%w: %s", ErrOutOfRange, cmd)
		}
		return int(math.Floor(v)), nil
	}

	v, err := parseNumber(cmd)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > maxBrightness {
		return 0, fmt.Errorf("%w: %s (accepted 0-%d)", ErrOutOfRange, cmd, maxBrightness)
	}
	if c.scale == ScaleAuto && v <= maxPercent {
		return int(math.Floor(v)), nil
	}
	return BrightnessToLevel(v), nil
}

func (c *Codec) encodeSwitch(cmd string) (WireCommand, error) {
	switch cmd {
	case cmdOn:
		return WireOn, nil
	case cmdOff:
		return WireOff, nil
	case cmdToggle:
		return WireToggle, nil
	default:
		return "", fmt.Errorf("%w: %q for switch", ErrUnsupportedCommand, cmd)
	}
}

func (c *Codec) encodeBlind(cmd string) (WireCommand, error) {
	switch cmd {
	case cmdOpen, cmdUp:
		return WireMoveUp, nil
	case cmdClose, cmdDown:
		return WireMoveDown, nil
	case cmdStop:
		return WireStop, nil
	}

	v, err := parseNumber(cmd)
	if err != nil {
		return "", fmt.Errorf("%w: %q for blind", ErrUnsupportedCommand, cmd)
	}
	if v < 0 || v > maxPercent {
		return "", fmt.Errorf("%w: %s (accepted 0-%d)", ErrOutOfRange, cmd, maxPercent)
	}
	return WireCommand(wireMoveToPrefix + strconv.Itoa(int(math.Round(v)))), nil
}

func decodeDimmer(prev device.State, wire WireCommand) (device.State, error) {
	last, _ := prev.(device.DimmerState)

	switch wire {
	case WireOn:
		level := last.Level
		if level <= 0 {
			level = maxPercent
		}
		return device.DimmerState{On: true, Level: level}, nil
	case WireOff:
		return device.DimmerState{On: false, Level: 0}, nil
	}

	level, ok := wireNumber(wire, wireDimToPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: wire %q for dimmer", ErrUnsupportedCommand, wire)
	}
	level = device.ClampPercent(level)
	return device.DimmerState{On: level > 0, Level: level}, nil
}

func decodeSwitch(prev device.State, wire WireCommand) (device.State, error) {
	last, _ := prev.(device.SwitchState)

	switch wire {
	case WireOn:
		return device.SwitchState{On: true}, nil
	case WireOff:
		return device.SwitchState{On: false}, nil
	case WireToggle:
		return device.SwitchState{On: !last.On}, nil
	default:
		return nil, fmt.Errorf("%w: wire %q for switch", ErrUnsupportedCommand, wire)
	}
}

// decodeBlind only moves the position for absolute moves. Relative moves and
// stop are reported back through later polls.
func decodeBlind(prev device.State, wire WireCommand) (device.State, error) {
	last, _ := prev.(device.BlindState)

	switch wire {
	case WireMoveUp, WireMoveDown, WireStop:
		return last, nil
	}

	pos, ok := wireNumber(wire, wireMoveToPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: wire %q for blind", ErrUnsupportedCommand, wire)
	}
	last.Position = device.ClampPercent(pos)
	return last, nil
}

// BrightnessToLevel maps an 8-bit brightness to a percentage.
func BrightnessToLevel(brightness float64) int {
	return device.ClampPercent(int(math.Round(brightness * maxPercent / maxBrightness)))
}

// LevelToBrightness maps a percentage to an 8-bit brightness.
func LevelToBrightness(level int) int {
	return int(math.Round(float64(device.ClampPercent(level)) * maxBrightness / maxPercent))
}

func normalizeCommand(cmd string) string {
	return strings.ToLower(strings.TrimSpace(cmd))
}

// isNumericCommand reports whether a normalised command carries a level.
func isNumericCommand(cmd string) bool {
	_, err := parseNumber(strings.TrimSuffix(cmd, "%"))
	return err == nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrUnsupportedCommand, s)
	}
	return v, nil
}

func wireNumber(wire WireCommand, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(string(wire), prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
