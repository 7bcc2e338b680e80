package messaging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a failed send attempt. The router cares about the
// distinction: only SessionInvalid triggers the tenant-session downgrade and
// fallback; everything else is a generic failure fed to the circuit breaker.
type ErrorKind int

const (
	// ErrorTransient is a generic gateway failure (non-2xx other than
	// 401/404, connection refused, DNS, ...).
	ErrorTransient ErrorKind = iota

	// ErrorSessionInvalid means the gateway rejected the session itself
	// (HTTP 401/404): the session is gone or was never paired.
	ErrorSessionInvalid

	// ErrorTimeout means the gateway did not answer within the request
	// timeout bound.
	ErrorTimeout

	// ErrorCircuitOpen means the call was rejected locally by the circuit
	// breaker without any network attempt.
	ErrorCircuitOpen
)

// String returns the kind name used in logs.
func (k ErrorKind) String() string {
	switch k {
	case ErrorSessionInvalid:
		return "session_invalid"
	case ErrorTimeout:
		return "timeout"
	case ErrorCircuitOpen:
		return "circuit_open"
	default:
		return "transient"
	}
}

// SendError describes a failed send attempt against the messaging gateway.
type SendError struct {
	// Kind classifies the failure for routing decisions.
	Kind ErrorKind

	// HTTPStatus is the gateway's response status, 0 if no response arrived.
	HTTPStatus int

	// GatewayCode is the gateway-specific error code, if one was returned.
	GatewayCode string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *SendError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("whatsapp send failed (%s, http %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("whatsapp send failed (%s): %s", e.Kind, e.Message)
}

// ErrFromStatus builds a SendError from a non-2xx gateway response.
// 401 and 404 mean the session is invalid or missing; anything else is a
// generic transient failure.
func ErrFromStatus(status int, gatewayCode, message string) *SendError {
	kind := ErrorTransient
	if status == http.StatusUnauthorized || status == http.StatusNotFound {
		kind = ErrorSessionInvalid
	}
	return &SendError{
		Kind:        kind,
		HTTPStatus:  status,
		GatewayCode: gatewayCode,
		Message:     message,
	}
}

// ErrFromTransport builds a SendError from a failed HTTP round trip
// (no response received). Deadline and net timeouts map to ErrorTimeout.
func ErrFromTransport(err error) *SendError {
	kind := ErrorTransient

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = ErrorTimeout
	}

	return &SendError{
		Kind:    kind,
		Message: err.Error(),
	}
}

// IsSessionInvalid reports whether err is a session-invalid send failure.
func IsSessionInvalid(err error) bool {
	return kindOf(err) == ErrorSessionInvalid
}

// IsTimeout reports whether err is a send timeout.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrorTimeout
}

// IsCircuitOpen reports whether err is a local circuit breaker rejection.
func IsCircuitOpen(err error) bool {
	return kindOf(err) == ErrorCircuitOpen
}

func kindOf(err error) ErrorKind {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Kind
	}
	return ErrorTransient
}
