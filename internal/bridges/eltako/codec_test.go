package eltako

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

func testDevice(class device.Class, st device.State) *device.Device {
	return &device.Device{ID: "1", Name: "Test", Class: class, Address: "0x1", State: st}
}

func TestCodec_EncodeDimmer(t *testing.T) {
	codec := NewCodec(ScaleBrightness)
	d := testDevice(device.ClassDimmer, device.DimmerState{})

	tests := []struct {
		cmd     string
		want    WireCommand
		wantErr error
	}{
		{"on", "on", nil},
		{" ON ", "on", nil},
		{"Off", "off", nil},
		{"0", "off", nil},
		{"128", "dimTo50", nil},
		{"255", "dimTo100", nil},
		{"100", "dimTo39", nil},
		{"1", "off", nil},
		{"2", "dimTo1", nil},
		{"127.5", "dimTo50", nil},
		{"50%", "dimTo50", nil},
		{"99.9%", "dimTo99", nil},
		{"0%", "off", nil},
		{"256", "", ErrOutOfRange},
		{"-1", "", ErrOutOfRange},
		{"101%", "", ErrOutOfRange},
		{"inf", "", ErrOutOfRange},
		{"NaN", "", ErrUnsupportedCommand},
		{"bright", "", ErrUnsupportedCommand},
		{"", "", ErrUnsupportedCommand},
		{"toggle", "", ErrUnsupportedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			got, err := codec.Encode(d, tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Encode(%q) error = %v, want %v", tt.cmd, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode(%q) error = %v", tt.cmd, err)
			}
			if got != tt.want {
				t.Errorf("Encode(%q) = %q, want %q", tt.cmd, got, tt.want)
			}
		})
	}
}

func TestCodec_EncodeDimmerAutoScale(t *testing.T) {
	codec := NewCodec(ScaleAuto)
	d := testDevice(device.ClassDimmer, device.DimmerState{})

	tests := []struct {
		cmd  string
		want WireCommand
	}{
		{"100", "dimTo100"},
		{"57.9", "dimTo57"},
		{"0.5", "off"},
		{"101", "dimTo40"},
		{"128", "dimTo50"},
		{"255", "dimTo100"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			got, err := codec.Encode(d, tt.cmd)
			if err != nil {
				t.Fatalf("Encode(%q) error = %v", tt.cmd, err)
			}
			if got != tt.want {
				t.Errorf("Encode(%q) = %q, want %q", tt.cmd, got, tt.want)
			}
		})
	}
}

// Every brightness in [0,255] encodes to round(v*100/255), or off at 0.
func TestCodec_DimmerBrightnessRange(t *testing.T) {
	codec := NewCodec(ScaleBrightness)
	d := testDevice(device.ClassDimmer, device.DimmerState{})

	for v := 0; v <= 255; v++ {
		got, err := codec.Encode(d, fmt.Sprint(v))
		if err != nil {
			t.Fatalf("Encode(%d) error = %v", v, err)
		}
		level := int(math.Round(float64(v) * 100 / 255))
		want := WireCommand(fmt.Sprintf("dimTo%d", level))
		if level == 0 {
			want = WireOff
		}
		if got != want {
			t.Errorf("Encode(%d) = %q, want %q", v, got, want)
		}
	}
}

func TestBrightnessRoundTrip(t *testing.T) {
	codec := NewCodec(ScaleBrightness)
	d := testDevice(device.ClassDimmer, device.DimmerState{})

	for level := 0; level <= 100; level++ {
		brightness := LevelToBrightness(level)
		wire, err := codec.Encode(d, fmt.Sprint(brightness))
		if err != nil {
			t.Fatalf("Encode(%d) error = %v", brightness, err)
		}
		st, err := codec.Decode(d, wire)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", wire, err)
		}
		got := st.(device.DimmerState).Level
		if diff := got - level; diff < -1 || diff > 1 {
			t.Errorf("level %d -> brightness %d -> level %d", level, brightness, got)
		}
	}
}

func TestCodec_EncodeSwitch(t *testing.T) {
	codec := NewCodec("")
	d := testDevice(device.ClassSwitch, device.SwitchState{})

	for _, cmd := range []string{"on", "off", "toggle"} {
		got, err := codec.Encode(d, cmd)
		if err != nil || string(got) != cmd {
			t.Errorf("Encode(%q) = %q, %v", cmd, got, err)
		}
	}
	for _, cmd := range []string{"50", "open", "dim"} {
		if _, err := codec.Encode(d, cmd); !errors.Is(err, ErrUnsupportedCommand) {
			t.Errorf("Encode(%q) error = %v, want ErrUnsupportedCommand", cmd, err)
		}
	}
}

func TestCodec_EncodeBlind(t *testing.T) {
	codec := NewCodec("")
	d := testDevice(device.ClassBlind, device.BlindState{})

	tests := []struct {
		cmd     string
		want    WireCommand
		wantErr error
	}{
		{"57", "moveTo57", nil},
		{"0", "moveTo0", nil},
		{"100", "moveTo100", nil},
		{"33.6", "moveTo34", nil},
		{"open", "moveup", nil},
		{"UP", "moveup", nil},
		{"close", "movedown", nil},
		{"down", "movedown", nil},
		{"stop", "stop", nil},
		{"101", "", ErrOutOfRange},
		{"-5", "", ErrOutOfRange},
		{"on", "", ErrUnsupportedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			got, err := codec.Encode(d, tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Encode(%q) error = %v, want %v", tt.cmd, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Encode(%q) = %q, %v; want %q", tt.cmd, got, err, tt.want)
			}
		})
	}
}

func TestCodec_ReadOnlyClasses(t *testing.T) {
	codec := NewCodec("")
	for _, class := range []device.Class{device.ClassWeather, device.ClassUnknown} {
		d := testDevice(class, nil)
		for _, cmd := range []string{"on", "50", "stop"} {
			if _, err := codec.Encode(d, cmd); !errors.Is(err, ErrUnsupportedCommand) {
				t.Errorf("%s Encode(%q) error = %v, want ErrUnsupportedCommand", class, cmd, err)
			}
		}
	}
}

func TestCodec_Decode(t *testing.T) {
	codec := NewCodec("")

	tests := []struct {
		name string
		d    *device.Device
		wire WireCommand
		want device.State
	}{
		{"dimmer on restores level", testDevice(device.ClassDimmer, device.DimmerState{On: false, Level: 40}), WireOn, device.DimmerState{On: true, Level: 40}},
		{"dimmer on from zero", testDevice(device.ClassDimmer, device.DimmerState{}), WireOn, device.DimmerState{On: true, Level: 100}},
		{"dimmer off", testDevice(device.ClassDimmer, device.DimmerState{On: true, Level: 40}), WireOff, device.DimmerState{}},
		{"dimmer dimTo", testDevice(device.ClassDimmer, device.DimmerState{}), "dimTo50", device.DimmerState{On: true, Level: 50}},
		{"dimmer without previous state", testDevice(device.ClassDimmer, nil), WireOn, device.DimmerState{On: true, Level: 100}},
		{"switch on", testDevice(device.ClassSwitch, device.SwitchState{}), WireOn, device.SwitchState{On: true}},
		{"switch toggle", testDevice(device.ClassSwitch, device.SwitchState{On: true}), WireToggle, device.SwitchState{On: false}},
		{"blind moveTo", testDevice(device.ClassBlind, device.BlindState{Position: 10, RemainingRuns: 2}), "moveTo57", device.BlindState{Position: 57, RemainingRuns: 2}},
		{"blind moveup keeps position", testDevice(device.ClassBlind, device.BlindState{Position: 10}), WireMoveUp, device.BlindState{Position: 10}},
		{"blind stop keeps position", testDevice(device.ClassBlind, device.BlindState{Position: 80}), WireStop, device.BlindState{Position: 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decode(tt.d, tt.wire)
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", tt.wire, err)
			}
			if got != tt.want {
				t.Errorf("Decode(%q) = %+v, want %+v", tt.wire, got, tt.want)
			}
		})
	}
}

func TestCodec_DecodeUnknownWire(t *testing.T) {
	codec := NewCodec("")
	if _, err := codec.Decode(testDevice(device.ClassDimmer, nil), "moveTo5"); !errors.Is(err, ErrUnsupportedCommand) {
		t.Errorf("error = %v, want ErrUnsupportedCommand", err)
	}
	if _, err := codec.Decode(testDevice(device.ClassWeather, nil), WireOn); !errors.Is(err, ErrUnsupportedCommand) {
		t.Errorf("error = %v, want ErrUnsupportedCommand", err)
	}
}

func TestParseDimmerScale(t *testing.T) {
	if s, err := ParseDimmerScale(""); err != nil || s != ScaleBrightness {
		t.Errorf("ParseDimmerScale(\"\") = %q, %v", s, err)
	}
	if s, err := ParseDimmerScale("Auto"); err != nil || s != ScaleAuto {
		t.Errorf("ParseDimmerScale(Auto) = %q, %v", s, err)
	}
	if _, err := ParseDimmerScale("percent"); err == nil {
		t.Error("ParseDimmerScale(percent) should fail")
	}
}
