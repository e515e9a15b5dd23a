package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPermanentInput marks corrupt or unsupported model/texture input.
	// The queue cannot tell it apart from a transient failure, so it still
	// consumes retry attempts; the marker exists for logging and audit.
	ErrPermanentInput = errors.New("permanent input error")

	// ErrEmptyFrameSequence is returned when a render produced no frames.
	ErrEmptyFrameSequence = errors.New("empty frame sequence")
)

// RetryableError wraps transient failures (browser crash, lost rendering
// context) that are expected to succeed on a later attempt.
type RetryableError struct {
	Err error
}

func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is marked transient.
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}
