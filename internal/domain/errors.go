// Package domain provides the conversation model and canonical error types
// shared by the chat client, the tool server and the model providers.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a failure.
type ErrorType string

const (
	// ErrorTypeTool covers unknown tools, failed tool executions and malformed tool input.
	ErrorTypeTool ErrorType = "tool_error"

	// ErrorTypeBackendUnavailable indicates the model backend could not be reached.
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"

	// ErrorTypeProtocol indicates the model backend answered with something unusable.
	ErrorTypeProtocol ErrorType = "protocol_error"

	// ErrorTypeRoundLimit indicates the tool-call round bound was hit.
	ErrorTypeRoundLimit ErrorType = "round_limit_exceeded"

	// ErrorTypeTransport indicates the tool transport connection failed.
	ErrorTypeTransport ErrorType = "transport_error"

	// ErrorTypeInvalidRequest indicates a malformed request at the HTTP surface.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
)

// Error is the canonical error carried between layers.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`

	// StatusCode is the backend HTTP status, if one was received.
	StatusCode int `json:"-"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status to use when the error reaches an HTTP client.
func (e *Error) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeBackendUnavailable, ErrorTypeTransport:
		return http.StatusServiceUnavailable
	case ErrorTypeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new error of the given type.
func NewError(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// WithStatusCode records the backend HTTP status.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// Convenience constructors

// NewToolError creates a tool error.
func NewToolError(message string) *Error {
	return NewError(ErrorTypeTool, message)
}

// NewBackendUnavailableError creates a backend unavailable error.
func NewBackendUnavailableError(message string) *Error {
	return NewError(ErrorTypeBackendUnavailable, message)
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string) *Error {
	return NewError(ErrorTypeProtocol, message)
}

// NewRoundLimitError creates a round limit error.
func NewRoundLimitError(rounds int) *Error {
	return NewError(ErrorTypeRoundLimit, fmt.Sprintf("stopped after %d tool rounds without a final answer", rounds))
}

// NewTransportError creates a transport error.
func NewTransportError(message string) *Error {
	return NewError(ErrorTypeTransport, message)
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return NewError(ErrorTypeInvalidRequest, message)
}

// IsType reports whether err is, or wraps, an *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Type == t
	}
	return false
}

// AsError extracts an *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// UserMessage renders err as the text shown to an end user.
func UserMessage(err error) string {
	if de, ok := AsError(err); ok {
		switch de.Type {
		case ErrorTypeBackendUnavailable:
			return "Error: the language model is unavailable (" + de.Message + ")"
		case ErrorTypeProtocol:
			return "Error: the language model returned an unusable response (" + de.Message + ")"
		}
		return "Error: " + de.Message
	}
	return "Error: " + err.Error()
}
