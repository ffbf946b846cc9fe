package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/tjfontaine/mcp-chat/internal/domain"
)

// StatusError maps a backend HTTP status to the gateway taxonomy: 5xx means
// the backend is unavailable, anything else is a protocol problem.
func StatusError(status int, message string, cause error) *domain.Error {
	msg := fmt.Sprintf("status %d: %s", status, message)
	var de *domain.Error
	if status >= 500 {
		de = domain.NewBackendUnavailableError(msg)
	} else {
		de = domain.NewProtocolError(msg)
	}
	return de.WithStatusCode(status).WithCause(cause)
}

// RequestError maps a failure to get any HTTP reply. A deadline is a
// protocol error; everything else means the backend could not be reached.
func RequestError(err error) *domain.Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return domain.NewProtocolError("model call timed out").WithCause(err)
	case errors.Is(err, context.Canceled):
		return domain.NewProtocolError("model call cancelled").WithCause(err)
	default:
		return domain.NewBackendUnavailableError("could not reach the model backend").WithCause(err)
	}
}

// DecodeError wraps an unusable reply body.
func DecodeError(err error) *domain.Error {
	return domain.NewProtocolError("could not decode the model response").WithCause(err)
}

// CallID returns id, or a fresh call_<uuid> when the backend omitted one.
func CallID(id string) string {
	if id != "" {
		return id
	}
	return "call_" + uuid.NewString()
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes <think>...</think> blocks emitted by reasoning
// models. An unterminated block swallows the rest of the text.
func StripReasoning(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	if i := strings.Index(text, "<think>"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// Turn builds a ModelTurn from parsed text and requests.
func Turn(text string, requests []domain.ToolCallRequest) *domain.ModelTurn {
	if len(requests) > 0 {
		return &domain.ModelTurn{Kind: domain.TurnToolCalls, Text: text, Requests: requests}
	}
	return &domain.ModelTurn{Kind: domain.TurnFinal, Text: text}
}
