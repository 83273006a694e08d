package realtime

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for the realtime package.
var (
	// ErrAlreadyConnected indicates Connect was called outside StateDisconnected.
	ErrAlreadyConnected = errors.New("realtime: already connected")

	// ErrNotConnected indicates the transport is not open.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrMissingCredential indicates neither an API key nor a token source was set.
	ErrMissingCredential = errors.New("realtime: credential is required")

	// ErrMissingStream indicates the session was created without a playback stream.
	ErrMissingStream = errors.New("realtime: playback stream is required")

	// ErrConnectAborted indicates Disconnect ran while Connect was dialing.
	ErrConnectAborted = errors.New("realtime: connect aborted")

	// ErrInvalidEvent indicates an inbound message could not be interpreted.
	ErrInvalidEvent = errors.New("realtime: invalid event")
)

// ConnectError is returned by Connect when the transport could not be opened.
type ConnectError struct {
	// URL is the endpoint without query parameters.
	URL string

	// StatusCode is the HTTP status of a rejected handshake, 0 otherwise.
	StatusCode int

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("realtime: connect %s (HTTP %d): %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("realtime: connect %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if another Connect may succeed.
func (e *ConnectError) IsRetryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}
	var netErr net.Error
	return errors.As(e.Cause, &netErr)
}

// ProtocolError reports an inbound message that was malformed or undecodable.
// The message is dropped and the session continues.
type ProtocolError struct {
	// EventType is the event type, if it could be read.
	EventType string

	// Reason describes what was wrong.
	Reason string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	msg := "realtime: protocol error"
	if e.EventType != "" {
		msg += " in " + e.EventType
	}
	msg += ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, or ErrInvalidEvent.
func (e *ProtocolError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrInvalidEvent
}

// APIError is an error event reported by the server.
type APIError struct {
	// Type is the error category.
	Type string

	// Code is the machine-readable error code.
	Code string

	// Message is the human-readable message.
	Message string

	// EventID is the client event that caused the error, if any.
	EventID string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime: API error [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("realtime: API error: %s", e.Message)
}

// IsRetryable returns true for server-side and rate limit errors.
func (e *APIError) IsRetryable() bool {
	return e.Type == "server_error" || e.Code == "rate_limit_exceeded"
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return connErr.IsRetryable()
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return false
}
