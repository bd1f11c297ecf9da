package device

import (
	"errors"
	"testing"
)

func dimmerRaw(id string, dim float64) RawDevice {
	return RawDevice{
		ID:      id,
		Name:    "Dimmer " + id,
		Type:    "FUD61NPN dimmer",
		Address: "0x" + id,
		State:   map[string]any{"dim": dim, "rssi": 80.0},
	}
}

func TestParseClass(t *testing.T) {
	tests := []struct {
		input string
		want  Class
	}{
		{"eltako_dimmer", ClassDimmer},
		{"FUD61 Dimmer", ClassDimmer},
		{"DimSwitch", ClassDimmer},
		{"eltako_blind", ClassBlind},
		{"FSB61 Shutter", ClassBlind},
		{"Jalousie", ClassBlind},
		{"eltako_weather", ClassWeather},
		{"eltako_switch", ClassSwitch},
		{"FSR61 relay", ClassSwitch},
		{"thermostat", ClassUnknown},
		{"", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseClass(tt.input); got != tt.want {
				t.Errorf("ParseClass(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassFromName(t *testing.T) {
	if c, ok := ClassFromName(" Blind "); !ok || c != ClassBlind {
		t.Errorf("ClassFromName(Blind) = %s, %v", c, ok)
	}
	if _, ok := ClassFromName("unknown"); ok {
		t.Error("ClassFromName(unknown) should not resolve")
	}
}

func TestParseState(t *testing.T) {
	t.Run("dimmer level implies on", func(t *testing.T) {
		st := ParseState(ClassDimmer, map[string]any{"dim": 42.0})
		want := DimmerState{On: true, Level: 42}
		if st != want {
			t.Errorf("got %+v, want %+v", st, want)
		}
	})

	t.Run("dimmer level is clamped", func(t *testing.T) {
		st := ParseState(ClassDimmer, map[string]any{"dim": "140"})
		want := DimmerState{On: true, Level: 100}
		if st != want {
			t.Errorf("got %+v, want %+v", st, want)
		}
	})

	t.Run("switch", func(t *testing.T) {
		if st := ParseState(ClassSwitch, map[string]any{"state": "on"}); st != (SwitchState{On: true}) {
			t.Errorf("got %+v", st)
		}
	})

	t.Run("blind", func(t *testing.T) {
		st := ParseState(ClassBlind, map[string]any{"pos": 57.0, "sync": true, "rt": 12.5, "rv": "3"})
		want := BlindState{Position: 57, Syncing: true, RemainingTime: 12.5, RemainingRuns: 3}
		if st != want {
			t.Errorf("got %+v, want %+v", st, want)
		}
	})

	t.Run("weather fields independently optional", func(t *testing.T) {
		st, ok := ParseState(ClassWeather, map[string]any{"wind": 3.2, "rain": "1", "sunWest": "bad"}).(WeatherState)
		if !ok {
			t.Fatal("expected WeatherState")
		}
		if st.Wind == nil || *st.Wind != 3.2 {
			t.Errorf("Wind = %v", st.Wind)
		}
		if st.RainActive == nil || !*st.RainActive {
			t.Errorf("RainActive = %v", st.RainActive)
		}
		if st.Temperature != nil || st.IlluminationWest != nil {
			t.Error("absent or malformed fields should be nil")
		}
	})
}

func TestParseStateAfter_DimmerOnMatchesLevel(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		prev State
		want DimmerState
	}{
		{"on without level, no history", map[string]any{"state": "on", "dim": 0.0}, nil, DimmerState{On: true, Level: 100}},
		{"on without level, previously off", map[string]any{"state": "on"}, DimmerState{On: false, Level: 0}, DimmerState{On: true, Level: 100}},
		{"on at zero keeps previous level", map[string]any{"state": "on", "dim": 0.0}, DimmerState{On: true, Level: 35}, DimmerState{On: true, Level: 35}},
		{"reported level wins over previous", map[string]any{"state": "on", "dim": 60.0}, DimmerState{On: true, Level: 35}, DimmerState{On: true, Level: 60}},
		{"off clears level", map[string]any{"state": "off", "dim": 40.0}, nil, DimmerState{On: false, Level: 0}},
		{"no state, zero level", map[string]any{"dim": 0.0}, DimmerState{On: true, Level: 35}, DimmerState{On: false, Level: 0}},
		{"previous of another class", map[string]any{"state": "on"}, SwitchState{On: true}, DimmerState{On: true, Level: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := ParseStateAfter(ClassDimmer, tt.raw, tt.prev)
			if st != tt.want {
				t.Errorf("got %+v, want %+v", st, tt.want)
			}
			if d := st.(DimmerState); d.On != (d.Level > 0) {
				t.Errorf("On = %v with Level %d", d.On, d.Level)
			}
		})
	}
}

func TestRegistry_PollOnWithoutLevelKeepsLevel(t *testing.T) {
	r := NewRegistry(RemovalKeep)
	r.ApplyPoll([]RawDevice{dimmerRaw("1", 45)}, r.BeginPoll())

	r.ApplyPoll([]RawDevice{{ID: "1", Type: "eltako_dimmer", State: map[string]any{"state": "on", "dim": 0.0}}}, r.BeginPoll())

	d, _ := r.Get("1")
	if d.State != (DimmerState{On: true, Level: 45}) {
		t.Errorf("State = %+v, want on at the previous level 45", d.State)
	}
}

func TestRegistry_ApplyPoll(t *testing.T) {
	r := NewRegistry(RemovalKeep)

	res := r.ApplyPoll([]RawDevice{dimmerRaw("2", 50), dimmerRaw("1", 0)}, r.BeginPoll())

	if len(res.Added) != 2 || res.Added[0] != "1" {
		t.Errorf("Added = %v, want sorted [1 2]", res.Added)
	}
	if len(res.Updated) != 2 {
		t.Fatalf("Updated = %d, want 2", len(res.Updated))
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}

	d, err := r.Get("2")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if d.Class != ClassDimmer || d.RSSI != 80 || d.Address != "0x2" {
		t.Errorf("unexpected device %+v", d)
	}
	if d.State != (DimmerState{On: true, Level: 50}) {
		t.Errorf("State = %+v", d.State)
	}

	// Second poll adds nothing new.
	res = r.ApplyPoll([]RawDevice{dimmerRaw("1", 10), dimmerRaw("2", 50)}, r.BeginPoll())
	if len(res.Added) != 0 {
		t.Errorf("Added = %v, want none", res.Added)
	}
}

func TestRegistry_ApplyPollSkipsEmptyID(t *testing.T) {
	r := NewRegistry(RemovalKeep)
	r.ApplyPoll([]RawDevice{{Type: "dimmer"}}, r.BeginPoll())
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestRegistry_StalePollDoesNotClobberCommand(t *testing.T) {
	r := NewRegistry(RemovalKeep)
	r.ApplyPoll([]RawDevice{dimmerRaw("1", 10)}, r.BeginPoll())

	// Poll starts, then a command lands before the response is applied.
	stamp := r.BeginPoll()
	if _, err := r.ApplyCommand("1", DimmerState{On: true, Level: 75}); err != nil {
		t.Fatalf("ApplyCommand() error: %v", err)
	}

	res := r.ApplyPoll([]RawDevice{dimmerRaw("1", 10)}, stamp)
	if len(res.Stale) != 1 || res.Stale[0] != "1" {
		t.Errorf("Stale = %v, want [1]", res.Stale)
	}
	if len(res.Updated) != 0 {
		t.Errorf("Updated = %d, want 0", len(res.Updated))
	}

	d, _ := r.Get("1")
	if d.State != (DimmerState{On: true, Level: 75}) {
		t.Errorf("State = %+v, optimistic update was overwritten", d.State)
	}

	// A poll that begins after the command is authoritative again.
	r.ApplyPoll([]RawDevice{dimmerRaw("1", 70)}, r.BeginPoll())
	d, _ = r.Get("1")
	if d.State != (DimmerState{On: true, Level: 70}) {
		t.Errorf("State = %+v, want polled level 70", d.State)
	}
}

func TestRegistry_RemovalPolicy(t *testing.T) {
	tests := []struct {
		name        string
		policy      RemovalPolicy
		wantCount   int
		wantRemoved int
	}{
		{"keep", RemovalKeep, 2, 0},
		{"prune", RemovalPrune, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.policy)
			r.ApplyPoll([]RawDevice{dimmerRaw("1", 10), dimmerRaw("2", 20)}, r.BeginPoll())

			res := r.ApplyPoll([]RawDevice{dimmerRaw("1", 10)}, r.BeginPoll())
			if r.Count() != tt.wantCount {
				t.Errorf("Count() = %d, want %d", r.Count(), tt.wantCount)
			}
			if len(res.Removed) != tt.wantRemoved {
				t.Errorf("Removed = %d, want %d", len(res.Removed), tt.wantRemoved)
			}
		})
	}
}

func TestParseRemovalPolicy(t *testing.T) {
	if p, err := ParseRemovalPolicy(""); err != nil || p != RemovalKeep {
		t.Errorf("ParseRemovalPolicy(\"\") = %q, %v", p, err)
	}
	if _, err := ParseRemovalPolicy("forget"); !errors.Is(err, ErrInvalidRemovalPolicy) {
		t.Errorf("error = %v, want ErrInvalidRemovalPolicy", err)
	}
}

func TestRegistry_ApplyCommandErrors(t *testing.T) {
	r := NewRegistry(RemovalKeep)
	r.ApplyPoll([]RawDevice{dimmerRaw("1", 10)}, r.BeginPoll())

	if _, err := r.ApplyCommand("missing", DimmerState{}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
	if _, err := r.ApplyCommand("1", SwitchState{On: true}); !errors.Is(err, ErrClassMismatch) {
		t.Errorf("error = %v, want ErrClassMismatch", err)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry(RemovalKeep)
	r.ApplyPoll([]RawDevice{dimmerRaw("1", 10)}, r.BeginPoll())

	d, _ := r.Get("1")
	d.Name = "changed"
	d.State = DimmerState{}

	again, _ := r.Get("1")
	if again.Name == "changed" || again.State == (DimmerState{}) {
		t.Error("modifying a returned device changed the registry")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry(RemovalKeep)
	r.ApplyPoll([]RawDevice{dimmerRaw("c", 1), dimmerRaw("a", 1), dimmerRaw("b", 1)}, r.BeginPoll())

	list := r.List()
	if len(list) != 3 || list[0].ID != "a" || list[2].ID != "c" {
		t.Errorf("List() not sorted: %v, %v, %v", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestClampPercent(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 57: 57, 100: 100, 130: 100} {
		if got := ClampPercent(in); got != want {
			t.Errorf("ClampPercent(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestReadings(t *testing.T) {
	wind := 4.5
	rain := false

	tests := []struct {
		name  string
		state State
		want  map[string]float64
	}{
		{"dimmer", DimmerState{On: true, Level: 40}, map[string]float64{"on": 1, "level": 40}},
		{"switch off", SwitchState{}, map[string]float64{"on": 0}},
		{"blind", BlindState{Position: 57, RemainingTime: 2.5}, map[string]float64{
			"position": 57, "syncing": 0, "remaining_time": 2.5, "remaining_runs": 0,
		}},
		{"weather partial", WeatherState{Wind: &wind, RainActive: &rain}, map[string]float64{"wind": 4.5, "rain": 0}},
		{"unknown", UnknownState{}, map[string]float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Readings(tt.state)
			if len(got) != len(tt.want) {
				t.Fatalf("Readings() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Readings()[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
