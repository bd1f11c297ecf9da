package eltako

import (
	"testing"
	"time"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

func TestDecide(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := 1500 * time.Millisecond

	tests := []struct {
		name string
		cmd  string
		now  time.Time
		last time.Time
		want Decision
	}{
		{"on within window", "on", t0.Add(time.Second), t0, Suppress},
		{"on after window", "on", t0.Add(2 * time.Second), t0, Proceed},
		{"on at window edge", "on", t0.Add(window), t0, Proceed},
		{"on padded and upper case", "  ON\n", t0.Add(time.Second), t0, Suppress},
		{"on without numeric history", "on", t0, time.Time{}, Proceed},
		{"off within window", "off", t0.Add(time.Second), t0, Proceed},
		{"numeric within window", "80", t0.Add(time.Second), t0, Proceed},
		{"toggle within window", "toggle", t0.Add(time.Second), t0, Proceed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.cmd, tt.now, tt.last, window); got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecide_ZeroWindowDisables(t *testing.T) {
	t0 := time.Now()
	if got := Decide("on", t0, t0, 0); got != Proceed {
		t.Errorf("Decide() = %s, want proceed", got)
	}
}

// fakeClock returns a settable time.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGuard(window time.Duration, classes ...device.Class) (*Guard, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := NewGuard(window, classes)
	g.now = clock.Now
	return g, clock
}

func TestGuard_SuppressesStaleOn(t *testing.T) {
	g, clock := newTestGuard(1500*time.Millisecond, device.ClassDimmer)
	d := &device.Device{ID: "7", Class: device.ClassDimmer}

	if got := g.Check(d, "128"); got != Proceed {
		t.Fatalf("numeric Check() = %s, want proceed", got)
	}

	clock.Advance(time.Second)
	if got := g.Check(d, "on"); got != Suppress {
		t.Errorf("on at t=1.0s = %s, want suppress", got)
	}

	clock.Advance(time.Second)
	if got := g.Check(d, "on"); got != Proceed {
		t.Errorf("on at t=2.0s = %s, want proceed", got)
	}
}

func TestGuard_PerDevice(t *testing.T) {
	g, clock := newTestGuard(time.Second, device.ClassDimmer)
	a := &device.Device{ID: "a", Class: device.ClassDimmer}
	b := &device.Device{ID: "b", Class: device.ClassDimmer}

	g.Check(a, "50")
	clock.Advance(100 * time.Millisecond)

	if got := g.Check(b, "on"); got != Proceed {
		t.Errorf("other device Check() = %s, want proceed", got)
	}
	if got := g.Check(a, "on"); got != Suppress {
		t.Errorf("same device Check() = %s, want suppress", got)
	}
}

func TestGuard_NumericRefreshesWindow(t *testing.T) {
	g, clock := newTestGuard(time.Second, device.ClassDimmer)
	d := &device.Device{ID: "1", Class: device.ClassDimmer}

	g.Check(d, "10")
	clock.Advance(800 * time.Millisecond)
	g.Check(d, "20")
	clock.Advance(800 * time.Millisecond)

	if got := g.Check(d, "on"); got != Suppress {
		t.Errorf("Check() = %s, want suppress (window restarted by second numeric)", got)
	}
}

func TestGuard_ClassFilter(t *testing.T) {
	g, clock := newTestGuard(time.Second, device.ClassDimmer)
	blind := &device.Device{ID: "b1", Class: device.ClassBlind}

	g.Check(blind, "40")
	clock.Advance(100 * time.Millisecond)
	if got := g.Check(blind, "on"); got != Proceed {
		t.Errorf("blind Check() = %s, want proceed when blind is not debounced", got)
	}
	if g.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for untracked class", g.Len())
	}

	g, clock = newTestGuard(time.Second, device.ClassDimmer, device.ClassBlind)
	g.Check(blind, "40")
	clock.Advance(100 * time.Millisecond)
	if got := g.Check(blind, "on"); got != Suppress {
		t.Errorf("blind Check() = %s, want suppress when blind is debounced", got)
	}
}

func TestGuard_Forget(t *testing.T) {
	g, _ := newTestGuard(time.Second, device.ClassDimmer)
	d := &device.Device{ID: "1", Class: device.ClassDimmer}

	g.Check(d, "10")
	g.Forget("1")
	if got := g.Check(d, "on"); got != Proceed {
		t.Errorf("Check() after Forget = %s, want proceed", got)
	}
}
