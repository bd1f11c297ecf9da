package mqtt

import (
	"errors"
	"fmt"
)

// Errors returned by Client. Test with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: not connected to broker")
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrPayloadTooLarge wraps ErrPublishFailed.
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrPublishFailed)

	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
