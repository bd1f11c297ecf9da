package eltako

import (
	"time"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

// Decision is the outcome of a debounce check.
type Decision int

const (
	// Proceed forwards the command to the codec and gateway.
	Proceed Decision = iota

	// Suppress drops the command with no gateway call and no state change.
	Suppress
)

// String returns the lower-case decision name.
func (d Decision) String() string {
	if d == Suppress {
		return "suppress"
	}
	return "proceed"
}

// Decide applies the debounce rule to a single command.
//
// A command that is lexically "on" is suppressed when a numeric command for
// the same device was accepted less than window ago. A zero lastNumeric means
// no numeric command has been seen. Any other command proceeds.
func Decide(cmd string, now, lastNumeric time.Time, window time.Duration) Decision {
	if window <= 0 || lastNumeric.IsZero() {
		return Proceed
	}
	if normalizeCommand(cmd) != cmdOn {
		return Proceed
	}
	if now.Sub(lastNumeric) < window {
		return Suppress
	}
	return Proceed
}

// Guard tracks the last accepted numeric command per device and applies
// Decide to inbound commands.
//
// Guard is not safe for concurrent use; the bridge's dispatch loop owns it.
type Guard struct {
	window  time.Duration
	classes map[device.Class]struct{}
	last    map[string]time.Time
	now     func() time.Time
}

// NewGuard creates a guard that applies to the given device classes.
func NewGuard(window time.Duration, classes []device.Class) *Guard {
	set := make(map[device.Class]struct{}, len(classes))
	for _, c := range classes {
		set[c] = struct{}{}
	}
	return &Guard{
		window:  window,
		classes: set,
		last:    make(map[string]time.Time),
		now:     time.Now,
	}
}

// Check decides whether cmd for d may proceed. A numeric command that
// proceeds is recorded as the device's latest numeric command.
func (g *Guard) Check(d *device.Device, cmd string) Decision {
	if _, ok := g.classes[d.Class]; !ok {
		return Proceed
	}

	now := g.now()
	decision := Decide(cmd, now, g.last[d.ID], g.window)
	if decision == Proceed && isNumericCommand(normalizeCommand(cmd)) {
		g.last[d.ID] = now
	}
	return decision
}

// Forget drops the entry for a device removed from the registry.
func (g *Guard) Forget(id string) {
	delete(g.last, id)
}

// Len returns the number of tracked devices.
func (g *Guard) Len() int {
	return len(g.last)
}
