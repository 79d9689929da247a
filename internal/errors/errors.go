package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by the token service and the client-side managers
var (
	// Transport errors
	ErrTransientNetwork = errors.New("transient network error")
	ErrRateLimited      = errors.New("rate limited")
	ErrRetriesExhausted = errors.New("retries exhausted")

	// Validation errors, never retried
	ErrValidation         = errors.New("validation error")
	ErrMissingIdentity    = fmt.Errorf("%w: missing identity", ErrValidation)
	ErrMissingCredentials = fmt.Errorf("%w: missing credentials", ErrValidation)

	// Signing errors
	ErrSigningUnavailable = errors.New("signing credentials unavailable")
	ErrSigningFailed      = errors.New("signing failed")

	// Lifecycle errors
	ErrConcurrencyConflict = errors.New("another session occupies the active slot")
	ErrAlreadyGone         = errors.New("resource already torn down")
	ErrInvalidInvite       = fmt.Errorf("%w: invalid invite link", ErrValidation)

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// RateLimitedError carries the server-provided retry delay and window quota.
type RateLimitedError struct {
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	Reset      time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfter returns the server-provided delay when err is a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

type goner interface {
	Gone() bool
}

// IsGone reports whether err means the remote side already released the resource.
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAlreadyGone) {
		return true
	}
	var g goner
	return errors.As(err, &g) && g.Gone()
}

// Retryable reports whether a manager may schedule another attempt after err.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrValidation) || errors.Is(err, ErrSigningUnavailable) {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTransientNetwork) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}

// Join is errors.Join, re-exported so callers need a single errors import
func Join(errs ...error) error {
	return errors.Join(errs...)
}
