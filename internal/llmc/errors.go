package llmc

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes of a completion call.
var (
	// ErrInvalidInput indicates the outbound user message was empty after trimming.
	ErrInvalidInput = errors.New("invalid input: message is empty")

	// ErrEmptyConversation indicates nothing was left to send after filtering.
	ErrEmptyConversation = errors.New("empty conversation: nothing to send")

	// ErrTransport indicates a network or HTTP status failure.
	ErrTransport = errors.New("transport error")

	// ErrMalformedResponse indicates a non-streamed response without answer text.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrEmptyResponse indicates a stream that completed without any content.
	ErrEmptyResponse = errors.New("empty response")

	// ErrCancelled indicates the caller abandoned the call.
	ErrCancelled = errors.New("cancelled")

	// ErrSessionStarted indicates Start was called on a session that already ran.
	ErrSessionStarted = errors.New("stream session already started")
)

// TransportError carries the HTTP status and reason of a failed exchange.
// StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *TransportError) Error() string {
	msg := "transport error"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrTransport and the underlying cause to errors.Is.
func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// IsRecoverable reports whether err is a failure the caller should answer
// with the fallback responder instead of surfacing it.
func IsRecoverable(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) {
		return false
	}
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrEmptyResponse)
}

// ContextError classifies the error of a finished context. An expired
// deadline is a timeout and becomes a TransportError; anything else is a
// caller cancellation wrapping ErrCancelled.
func ContextError(cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return &TransportError{Reason: "timeout", Err: cause}
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
