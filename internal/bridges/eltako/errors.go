package eltako

import "errors"

// Domain errors for the Eltako bridge package.
var (
	// ErrUnsupportedCommand is returned when a command token is not valid
	// for the device's class. The command is dropped without a gateway call.
	ErrUnsupportedCommand = errors.New("eltako: unsupported command")

	// ErrOutOfRange is returned when a numeric command payload falls
	// outside the accepted bounds.
	ErrOutOfRange = errors.New("eltako: value out of range")

	// ErrUnknownDevice is returned when a command references a device id
	// that is not in the registry.
	ErrUnknownDevice = errors.New("eltako: unknown device")

	// ErrGateway is returned when the gateway call fails: transport error,
	// timeout, non-2xx status or a response without the success marker.
	ErrGateway = errors.New("eltako: gateway error")

	// ErrSuppressed marks a command dropped by the debounce guard.
	ErrSuppressed = errors.New("eltako: command suppressed")

	// ErrStopped is returned when a command is submitted after Stop.
	ErrStopped = errors.New("eltako: bridge stopped")

	// ErrQueueFull is returned when the dispatch queue cannot take another command.
	ErrQueueFull = errors.New("eltako: command queue full")
)
