// internal/niimbot/errors.go
package niimbot

import (
	"errors"
	"fmt"
)

// Sentinel errors for the driver taxonomy. Typed errors below match them via errors.Is.
var (
	ErrFraming       = errors.New("niimbot: malformed packet")
	ErrDeviceError   = errors.New("niimbot: printer reported an error")
	ErrUnsupported   = errors.New("niimbot: operation not supported by printer")
	ErrNoResponse    = errors.New("niimbot: no response from printer")
	ErrConnection    = errors.New("niimbot: connection failure")
	ErrConfiguration = errors.New("niimbot: invalid configuration")
)

// FramingError describes why a byte sequence is not a valid packet.
type FramingError struct {
	Reason string
	Frame  []byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("niimbot: malformed packet: %s (% x)", e.Reason, e.Frame)
}

func (e *FramingError) Is(target error) bool { return target == ErrFraming }

// ConnectionError wraps a transport open/read/write failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("niimbot: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// ConfigurationError is returned before any I/O when a parameter is out of range.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("niimbot: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// JobError reports which print job state failed.
type JobError struct {
	State JobState
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("print job failed in state %s: %v", e.State, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// errNotAcknowledged is returned when a command response carries a false payload.
var errNotAcknowledged = errors.New("printer did not acknowledge command")

// ErrorCode maps an error from this package to a short stable code for API responses
// and job records.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "CONFIGURATION_ERROR"
	case errors.Is(err, ErrFraming):
		return "FRAMING_ERROR"
	case errors.Is(err, ErrDeviceError):
		return "DEVICE_ERROR"
	case errors.Is(err, ErrUnsupported):
		return "UNSUPPORTED_OPERATION"
	case errors.Is(err, ErrNoResponse):
		return "NO_RESPONSE"
	case errors.Is(err, ErrConnection):
		return "CONNECTION_ERROR"
	case errors.Is(err, errNotAcknowledged):
		return "NOT_ACKNOWLEDGED"
	default:
		return "UNKNOWN_ERROR"
	}
}
