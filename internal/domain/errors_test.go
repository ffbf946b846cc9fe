package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "type and message",
			err:      NewToolError("unknown tool \"x\""),
			expected: "tool_error: unknown tool \"x\"",
		},
		{
			name:     "with cause",
			err:      NewBackendUnavailableError("request failed").WithCause(errors.New("connection refused")),
			expected: "backend_unavailable: request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		err      *Error
		expected int
	}{
		{NewInvalidRequestError("bad"), http.StatusBadRequest},
		{NewBackendUnavailableError("down"), http.StatusServiceUnavailable},
		{NewTransportError("lost"), http.StatusServiceUnavailable},
		{NewProtocolError("garbled"), http.StatusBadGateway},
		{NewToolError("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", NewProtocolError("bad json"))

	if !IsType(wrapped, ErrorTypeProtocol) {
		t.Error("expected wrapped protocol error to match")
	}
	if IsType(wrapped, ErrorTypeBackendUnavailable) {
		t.Error("did not expect backend_unavailable match")
	}
	if IsType(errors.New("plain"), ErrorTypeProtocol) {
		t.Error("plain errors should not match")
	}
}

func TestUserMessage(t *testing.T) {
	got := UserMessage(NewBackendUnavailableError("connection refused"))
	if !strings.HasPrefix(got, "Error: ") || !strings.Contains(got, "connection refused") {
		t.Errorf("UserMessage() = %q", got)
	}

	got = UserMessage(errors.New("boom"))
	if got != "Error: boom" {
		t.Errorf("UserMessage() = %q, want %q", got, "Error: boom")
	}
}
