// Retry policy for gateway calls.
//
// One policy serves every transport; the per-provider ad hoc retry loops of
// earlier designs are consolidated here. Classification depends only on the
// normalized TransportError and stdlib error types.

package llm

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// RetryPolicy classifies failures and computes backoff delays.
// The gateway enforces MaxAttempts; the policy itself is stateless.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy returns the standard policy: three attempts,
// exponential backoff from 500ms capped at 8s, with jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Jitter:      true,
	}
}

// ShouldRetry reports whether the error is transient. Retryable failures:
// connection reset/refused, timeouts, HTTP 429 and 5xx, and malformed
// structured output. Everything else (auth failures, bad input, 4xx) is fatal.
func (p RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// Caller aborted: never retry.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Structured-output failure: resampling often fixes it.
	if errors.Is(err, ErrMalformedOutput) {
		return true
	}

	var tErr *TransportError
	if errors.As(err, &tErr) && tErr.Status > 0 {
		return tErr.Status == 429 || tErr.Status >= 500
	}

	// Per-call timeout surfaces as context.DeadlineExceeded.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	// Transport failure below HTTP with no recognizable cause: assume the
	// connection broke and resampling is safe.
	if errors.As(err, &tErr) {
		return true
	}

	return false
}

// Delay returns the backoff before the given attempt (1-indexed):
// base * 2^(attempt-1), capped at MaxDelay. Jitter adds up to half the
// computed delay but never past MaxDelay, so the cap holds and the
// sequence stays monotonically non-decreasing.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter && d < p.MaxDelay {
		span := d / 2
		if d+span > p.MaxDelay {
			span = p.MaxDelay - d
		}
		d += time.Duration(rand.Int63n(int64(span) + 1))
	}
	return d
}
