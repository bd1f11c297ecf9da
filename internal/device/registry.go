package device

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RemovalPolicy controls what happens to devices missing from a full poll.
type RemovalPolicy string

const (
	// RemovalKeep leaves devices in place with their last-known state.
	RemovalKeep RemovalPolicy = "keep"

	// RemovalPrune deletes devices that are absent from a poll response.
	RemovalPrune RemovalPolicy = "prune"
)

// ParseRemovalPolicy validates a policy string. Empty means RemovalKeep.
func ParseRemovalPolicy(s string) (RemovalPolicy, error) {
	switch RemovalPolicy(s) {
	case "", RemovalKeep:
		return RemovalKeep, nil
	case RemovalPrune:
		return RemovalPrune, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRemovalPolicy, s)
	}
}

// PollResult describes what a single ApplyPoll changed.
type PollResult struct {
	// Updated holds a copy of every device whose polled state was applied,
	// including newly added devices. Sorted by ID.
	Updated []*Device

	// Added lists the IDs first seen in this poll.
	Added []string

	// Removed holds the devices dropped under RemovalPrune.
	Removed []*Device

	// Stale lists devices whose polled state was discarded because a
	// command-driven update landed after the poll began.
	Stale []string
}

// Registry is the in-memory store of gateway devices.
//
// All public methods are thread-safe.
type Registry struct {
	devices map[string]*Device
	seq     uint64
	policy  RemovalPolicy
	mu      sync.RWMutex
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry with the given removal policy.
func NewRegistry(policy RemovalPolicy) *Registry {
	if policy == "" {
		policy = RemovalKeep
	}
	return &Registry{
		devices: make(map[string]*Device),
		policy:  policy,
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// BeginPoll returns a stamp to pass to ApplyPoll once the gateway responds.
// Commands applied after this call take precedence over the poll's data.
func (r *Registry) BeginPoll() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// ApplyPoll merges a full gateway state listing into the registry.
//
// Devices commanded after stamp keep their state; their name, type and
// address are still refreshed. Devices not present in raw are removed only
// under RemovalPrune.
func (r *Registry) ApplyPoll(raw []RawDevice, stamp uint64) PollResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var res PollResult
	seen := make(map[string]struct{}, len(raw))

	for _, rd := range raw {
		if rd.ID == "" {
			continue
		}
		seen[rd.ID] = struct{}{}

		class := ParseClass(rd.Type)
		d, exists := r.devices[rd.ID]
		if !exists {
			d = &Device{ID: rd.ID}
			r.devices[rd.ID] = d
			res.Added = append(res.Added, rd.ID)
		}
		d.Name = rd.Name
		d.Type = rd.Type
		d.Address = rd.Address
		if d.Class != class {
			// Type changed underneath us; the old state record is meaningless.
			d.Class = class
			d.State = nil
			d.cmdSeq = 0
		}

		if exists && d.cmdSeq > stamp {
			res.Stale = append(res.Stale, d.ID)
			continue
		}

		d.RSSI = ParseRSSI(rd.State)
		d.State = ParseStateAfter(class, rd.State, d.State)
		d.UpdatedAt = now
		res.Updated = append(res.Updated, d.Copy())
	}

	if r.policy == RemovalPrune {
		for id, d := range r.devices {
			if _, ok := seen[id]; !ok {
				res.Removed = append(res.Removed, d.Copy())
				delete(r.devices, id)
			}
		}
	}

	sortDevices(res.Updated)
	sortDevices(res.Removed)
	sort.Strings(res.Added)
	sort.Strings(res.Stale)

	r.logger.Debug("poll applied",
		"updated", len(res.Updated),
		"added", len(res.Added),
		"removed", len(res.Removed),
		"stale", len(res.Stale),
	)
	return res
}

// ApplyCommand records the optimistic state produced by a confirmed command.
// It advances the registry sequence so that polls already in flight cannot
// overwrite this state.
func (r *Registry) ApplyCommand(id string, st State) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if st == nil || st.Class() != d.Class {
		return nil, fmt.Errorf("%w: device %s is %s", ErrClassMismatch, id, d.Class)
	}

	r.seq++
	d.cmdSeq = r.seq
	d.State = st
	d.UpdatedAt = r.now()
	return d.Copy(), nil
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d.Copy(), nil
}

// List returns copies of all devices sorted by ID.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d.Copy())
	}
	sortDevices(out)
	return out
}

// Count returns the number of devices in the registry.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func sortDevices(ds []*Device) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
}
