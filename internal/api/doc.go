// Package api implements the optional local HTTP API and WebSocket feed.
//
// This package provides:
//   - REST endpoints for bridge health, device listing and device commands
//   - JSON runtime metrics and a Prometheus scrape endpoint
//   - WebSocket hub broadcasting "device.state" events
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Commands
//
// POST /api/v1/devices/{id}/command goes through the same dispatch queue as
// commands received on the bus, so debounce, codec and gateway rules apply
// identically. The handler waits for the result and maps bridge errors onto
// HTTP status codes.
//
// # Live State
//
// The Hub implements the bridge's StateObserver interface. Each published
// device snapshot is broadcast to WebSocket clients subscribed to
// "device.state"; new clients start subscribed to it.
package api
