package transportx

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExhausted is matched by every *ExhaustedError.
	ErrExhausted = errors.New("transportx: retries exhausted")

	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("transportx: overall timeout elapsed")
)

// ExhaustedError is returned when every allowed attempt failed with a
// retryable outcome.
type ExhaustedError struct {
	Attempts   int
	LastStatus int   // zero when the last attempt never got a response
	Err        error // last transport error, if any
}

func (e *ExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transportx: retries exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("transportx: retries exhausted after %d attempts: last status %d", e.Attempts, e.LastStatus)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }
func (e *ExhaustedError) Unwrap() error        { return e.Err }

// TimeoutError is returned when the overall deadline fired before the retry
// sequence finished.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transportx: gave up after %s (%d attempts)", e.Timeout, e.Attempts)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
func (e *TimeoutError) Unwrap() error        { return e.Err }

// StatusError is returned by the JSON helpers for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transportx: unexpected status %d", e.StatusCode)
}
