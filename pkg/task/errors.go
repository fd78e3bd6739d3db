package task

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"
)

// ErrCanceled is the sentinel surfaced when a run token is invalidated at
// a cancellation check. It marks user intent, never a failure.
var ErrCanceled = errors.New("run canceled")

// VendorError is the base error type for vendor request failures.
type VendorError struct {
	Vendor  string
	Code    int
	Message string
	Cause   error
}

func (e *VendorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error %d: %s: %v", e.Vendor, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error %d: %s", e.Vendor, e.Code, e.Message)
}

func (e *VendorError) Unwrap() error { return e.Cause }

// QuotaError is returned when a token is rate- or quota-limited. The UI
// offers a differentiated retry affordance for these; the engine itself
// never auto-retries beyond the video failover list.
type QuotaError struct{ VendorError }

// RequestError is returned on a malformed request or other non-2xx that is
// fatal for the attempt.
type RequestError struct{ VendorError }

// ServerError is returned on 5xx responses.
type ServerError struct{ VendorError }

// AuthError is returned on authentication/authorization failures.
type AuthError struct{ VendorError }

// TaskFailedError carries a vendor-declared terminal task failure.
type TaskFailedError struct {
	Vendor string
	TaskID string
	Reason string
}

func (e *TaskFailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s task %s failed: %s", e.Vendor, e.TaskID, e.Reason)
	}
	return fmt.Sprintf("%s task %s failed", e.Vendor, e.TaskID)
}

// TimeoutError marks a polling loop that exceeded its overall deadline.
// Distinct from TaskFailedError: the job's true vendor-side fate is unknown.
type TimeoutError struct {
	Vendor string
	TaskID string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s task %s timed out after %s with no terminal response", e.Vendor, e.TaskID, e.After)
}

// QuotaExceeded reports whether err is a rate/quota limit.
func QuotaExceeded(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// Retryable returns true if the error is transient and the request may be
// retried (used by the synchronous text/image adapters).
func Retryable(err error) bool {
	var qe *QuotaError
	var se *ServerError
	return errors.As(err, &qe) || errors.As(err, &se)
}

// Transient reports whether a poll fetch error should be swallowed and
// retried on the next interval: server-side blips and network errors
// qualify, vendor-declared failures and auth problems do not.
func Transient(err error) bool {
	var se *ServerError
	if errors.As(err, &se) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// WithRetry retries fn up to maxAttempts using exponential backoff with
// jitter. It respects context cancellation.
func WithRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error
	for i := range maxAttempts {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if i == maxAttempts-1 {
			break
		}
		// Exponential backoff: base 1s, max 30s, ±25% jitter
		base := time.Duration(1<<uint(i)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		jitter := time.Duration(rand.Float64() * 0.5 * float64(base))
		wait := base/4*3 + jitter
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", maxAttempts, lastErr)
}
