package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing without a live connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionLost wraps the cause reported when an established connection drops.
	ErrConnectionLost = errors.New("mqtt: connection lost")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrUnsupportedProtocol is returned for a broker protocol scheme that is not
	// one of mqtt://, mqtts://, ws://, wss://.
	ErrUnsupportedProtocol = errors.New("mqtt: unsupported protocol")

	// ErrNoBroker is returned when the store holds no broker record.
	ErrNoBroker = errors.New("mqtt: no broker configured")
)
