package llm

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func TestShouldRetryRateLimit(t *testing.T) {
	err := &TransportError{Status: 429, Err: errors.New("rate limited")}
	if !DefaultRetryPolicy().ShouldRetry(err) {
		t.Error("429 must be retryable")
	}
}

func TestShouldRetryServerErrors(t *testing.T) {
	for _, status := range []int{500, 502, 503, 529} {
		err := &TransportError{Status: status, Err: errors.New("server error")}
		if !DefaultRetryPolicy().ShouldRetry(err) {
			t.Errorf("status %d must be retryable", status)
		}
	}
}

func TestShouldNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		err := &TransportError{Status: status, Err: errors.New("client error")}
		if DefaultRetryPolicy().ShouldRetry(err) {
			t.Errorf("status %d must be fatal", status)
		}
	}
}

func TestShouldRetryWrappedTransportError(t *testing.T) {
	err := fmt.Errorf("call failed: %w", &TransportError{Status: 503, Err: errors.New("overloaded")})
	if !DefaultRetryPolicy().ShouldRetry(err) {
		t.Error("wrapped transport error must still classify by status")
	}
}

func TestShouldRetryMalformedOutput(t *testing.T) {
	err := fmt.Errorf("attempt 1: %w", ErrMalformedOutput)
	if !DefaultRetryPolicy().ShouldRetry(err) {
		t.Error("malformed output must be retryable")
	}
}

func TestShouldNotRetryCancellation(t *testing.T) {
	if DefaultRetryPolicy().ShouldRetry(context.Canceled) {
		t.Error("cancellation must never be retried")
	}
}

func TestShouldRetryDeadlineExceeded(t *testing.T) {
	if !DefaultRetryPolicy().ShouldRetry(context.DeadlineExceeded) {
		t.Error("per-call timeout must be retryable")
	}
}

func TestShouldRetryConnectionFailures(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.EPIPE} {
		if !DefaultRetryPolicy().ShouldRetry(fmt.Errorf("dial: %w", errno)) {
			t.Errorf("%v must be retryable", errno)
		}
	}
}

func TestShouldRetryStatuslessTransportError(t *testing.T) {
	err := &TransportError{Err: errors.New("connection broke mid-stream")}
	if !DefaultRetryPolicy().ShouldRetry(err) {
		t.Error("transport error without status must be retryable")
	}
}

func TestShouldNotRetryNilOrUnknown(t *testing.T) {
	policy := DefaultRetryPolicy()
	if policy.ShouldRetry(nil) {
		t.Error("nil error is not retryable")
	}
	if policy.ShouldRetry(errors.New("validation failed")) {
		t.Error("unclassified errors must be fatal")
	}
}

func TestDelayDoublesAndCaps(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Jitter:      false,
	}

	expected := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, want := range expected {
		if got := policy.Delay(i + 1); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestDelayWithJitterStaysMonotonic(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}

	// Jitter adds at most half the computed delay, so doubling keeps the
	// sequence non-decreasing regardless of the random draw.
	for trial := 0; trial < 50; trial++ {
		prev := time.Duration(0)
		for attempt := 1; attempt <= 5; attempt++ {
			d := policy.Delay(attempt)
			if d < prev {
				t.Fatalf("attempt %d delay %v below previous %v", attempt, d, prev)
			}
			prev = d
		}
	}
}

func TestDelayJitterNeverExceedsCap(t *testing.T) {
	// The cap lands inside the jitter window: base 5s jittered naively could
	// reach 7.5s, past the 6s ceiling.
	policy := RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   5 * time.Second,
		MaxDelay:    6 * time.Second,
		Jitter:      true,
	}

	for trial := 0; trial < 200; trial++ {
		prev := time.Duration(0)
		for attempt := 1; attempt <= 4; attempt++ {
			d := policy.Delay(attempt)
			if d > policy.MaxDelay {
				t.Fatalf("attempt %d delay %v exceeds cap %v", attempt, d, policy.MaxDelay)
			}
			if d < prev {
				t.Fatalf("attempt %d delay %v below previous %v", attempt, d, prev)
			}
			prev = d
		}
	}
}

func TestDelayClampsInvalidAttempt(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, MaxDelay: 8 * time.Second}
	if got := policy.Delay(0); got != time.Second {
		t.Errorf("attempt 0 should clamp to base delay, got %v", got)
	}
}
