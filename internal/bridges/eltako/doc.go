// Package eltako implements the Eltako MiniSafe2 bridge for eltako2mqtt.
//
// The package translates between the MiniSafe2 HTTP gateway and MQTT, exposing
// dimmers, switches, roller blinds and weather stations as retained state
// topics and Home Assistant discovery entities.
//
// # Architecture
//
//	┌──────────────┐  <ns>/<id>/set   ┌──────────────────────────────┐   HTTP   ┌───────────┐
//	│  MQTT broker │─────────────────►│ Bridge (single dispatch loop)│◄────────►│ MiniSafe2 │
//	│              │◄─────────────────│  Guard → Codec → Registry    │          │  gateway  │
//	└──────────────┘  <ns>/<id>/<f>   │  → StateValues / Discovery   │          └───────────┘
//	                                  └──────────────────────────────┘
//
// # Command Path
//
// An inbound set-command passes the debounce Guard, is encoded by the Codec
// into a wire command (dimTo50, moveup, ...) and sent to the gateway. Only when
// the gateway confirms with {XC_SUC} is the command decoded into an optimistic
// state record, applied to the device registry and published.
//
// # Poll Path
//
// The gateway is polled every poll interval. Poll responses are applied by the
// same dispatch loop that handles commands, stamped so that a poll which began
// before a confirmed command cannot overwrite that command's state.
//
// # Thread Safety
//
// Registry and Guard mutations happen only on the dispatch goroutine. Exported
// Bridge methods are safe for concurrent use.
package eltako
