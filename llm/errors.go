// Error taxonomy for gateway calls.
//
// Transient transport failures and malformed structured output are
// retryable; caller mistakes propagate immediately. Transports normalize
// their SDK-specific errors into TransportError so the retry policy can
// classify them without knowing which backend produced them.

package llm

import (
	"errors"
	"fmt"
)

// ErrMalformedOutput marks a response that was required to be structured
// JSON but could not be parsed into a non-empty object. Resampling often
// fixes it, so it is classified as retryable.
var ErrMalformedOutput = errors.New("malformed structured output")

// ErrEmptyPrompt marks a caller error: a request with no prompt text.
var ErrEmptyPrompt = errors.New("empty prompt")

// TransportError wraps a backend failure with its HTTP status when known.
// Status 0 means the failure happened below HTTP (dial, reset, timeout).
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transport error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
