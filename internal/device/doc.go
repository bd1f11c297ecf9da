// Package device provides the in-memory Device Registry for eltako2mqtt.
//
// The registry is the authoritative local view of every actuator and sensor
// reported by the MiniSafe2 gateway. It holds the resolved device class, the
// gateway address used for commands, and the last-known state record.
//
// # Architecture
//
//	┌──────────────────────┐  poll   ┌──────────────────────┐
//	│   MiniSafe2 client   │────────▶│       Registry       │
//	│  (bridges/eltako)    │         │    (registry.go)     │
//	└──────────────────────┘         │                      │
//	┌──────────────────────┐ command │ • class resolution   │
//	│    Bridge dispatch   │────────▶│ • sequence stamping  │
//	│  (optimistic state)  │         │ • removal policy     │
//	└──────────────────────┘         └──────────────────────┘
//
// # Key Types
//
//   - Class: closed set of device classes (dimmer, switch, blind, weather)
//   - State: class-specific state record (DimmerState, SwitchState, ...)
//   - RawDevice: a device entry as reported by the gateway
//   - Registry: thread-safe store with poll/command ordering guarantees
//
// # Ordering
//
// A poll takes a stamp with BeginPoll before it fetches from the gateway.
// Command-driven updates advance the registry sequence. ApplyPoll discards
// the polled state of any device that was commanded after the stamp, so a
// slow poll response never overwrites a fresher optimistic update.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Returned devices are
// copies; callers may modify them freely.
package device
