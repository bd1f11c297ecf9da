package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrClassMismatch is returned when a state record does not match the
	// class of the device it is applied to.
	ErrClassMismatch = errors.New("device: state class mismatch")

	// ErrInvalidRemovalPolicy is returned for an unrecognised removal policy.
	ErrInvalidRemovalPolicy = errors.New("device: invalid removal policy")
)
