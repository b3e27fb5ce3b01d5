package split

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Error represents a failure detected while splitting a stream.
//
// Split errors include:
//   - Config: routing component absent from the schema, invalid schema
//   - Protocol: fragment arrived with no active key, short partition key
//   - Consumer: a per-key consumer returned an error
//   - Upstream: the source failed mid-stream
//
// Error includes structured fields for diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Component is the routing component name.
	Component string

	// Key is the routing key value involved, if any.
	Key []byte

	// Seq is the arrival position of the offending fragment, if any.
	Seq int64

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes split errors.
type ErrorCode string

const (
	// ErrCodeConfig indicates a setup-time, non-retryable configuration problem.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeProtocol indicates malformed or out-of-order input from the source.
	ErrCodeProtocol ErrorCode = "PROTOCOL_VIOLATION"

	// ErrCodeConsumer indicates a per-key consumer failed.
	ErrCodeConsumer ErrorCode = "CONSUMER_FAILED"

	// ErrCodeUpstream indicates the source failed mid-stream.
	ErrCodeUpstream ErrorCode = "UPSTREAM_FAILED"
)

// ErrAborted is returned by Stream.Next when the producer side gave up
// before end of stream (source failure, protocol violation, cancellation).
// The abort cause is wrapped alongside it.
var ErrAborted = errors.New("sub-stream aborted")

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Component != "" {
		msg += fmt.Sprintf(" (component=%s", e.Component)
		if e.Key != nil {
			msg += fmt.Sprintf(", key=%s", formatKey(e.Key))
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the split error code of err, or "" if err is not a split error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsConfigError returns true if err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool { return CodeOf(err) == ErrCodeConfig }

// IsProtocolError returns true if err is a protocol violation.
func IsProtocolError(err error) bool { return CodeOf(err) == ErrCodeProtocol }

// IsConsumerError returns true if err is a consumer failure.
func IsConsumerError(err error) bool { return CodeOf(err) == ErrCodeConsumer }

// IsUpstreamError returns true if err is an upstream source failure.
func IsUpstreamError(err error) bool { return CodeOf(err) == ErrCodeUpstream }

// newConfigError creates an Error for a setup-time failure.
func newConfigError(component, message string, cause error) *Error {
	return &Error{
		Code:      ErrCodeConfig,
		Message:   message,
		Component: component,
		Err:       cause,
	}
}

// newProtocolError creates an Error for malformed input.
func newProtocolError(component, message string, seq int64) *Error {
	return &Error{
		Code:      ErrCodeProtocol,
		Message:   message,
		Component: component,
		Seq:       seq,
	}
}

// newConsumerError creates an Error attributing a consumer failure to its key.
func newConsumerError(component string, key []byte, cause error) *Error {
	return &Error{
		Code:      ErrCodeConsumer,
		Message:   "consumer failed",
		Component: component,
		Key:       key,
		Err:       cause,
	}
}

// newUpstreamError creates an Error wrapping a source failure.
func newUpstreamError(component string, cause error) *Error {
	return &Error{
		Code:      ErrCodeUpstream,
		Message:   "source failed",
		Component: component,
		Err:       cause,
	}
}

// formatKey renders printable keys as-is and everything else as hex.
func formatKey(key []byte) string {
	for _, b := range key {
		if b < 0x20 || b > 0x7e {
			return "0x" + hex.EncodeToString(key)
		}
	}
	return string(key)
}
