package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not exist in the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidState is returned when a transition is attempted from a
	// state that does not permit it (e.g. Complete on a Pending job).
	ErrInvalidState = errors.New("job not in a valid state for this transition")

	// ErrNoPendingJob is returned by dequeue when the queue is empty. This
	// is a normal outcome, not a failure.
	ErrNoPendingJob = errors.New("no pending job available")
)
