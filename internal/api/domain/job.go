package domain

import (
	"time"
)

// JobStatus is the closed set of thumbnail job states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "Pending"
	JobStatusProcessing JobStatus = "Processing"
	JobStatusDone       JobStatus = "Done"
	JobStatusDead       JobStatus = "Dead"
)

// Valid reports whether s is one of the known job states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusDone, JobStatusDead:
		return true
	}
	return false
}

// Terminal reports whether a job in this state has finished its lifecycle.
// Dead is only escaped via an explicit reset.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusDead
}

// Job is one row of the durable work queue. Rows are never deleted; terminal
// jobs are retained for audit.
type Job struct {
	ID             string    `db:"id"`
	ModelID        int64     `db:"model_id"`
	ModelVersionID int64     `db:"model_version_id"`
	ContentHash    string    `db:"content_hash"`
	Status         JobStatus `db:"status"`
	AttemptCount   int       `db:"attempt_count"`
	LeaseOwner     *string   `db:"lease_owner"`
	ErrorMessage   string    `db:"error_message"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Dequeue transitions Pending -> Processing, granting the lease to workerID
// and charging one attempt. Illegal from any other state.
func (j *Job) Dequeue(workerID string, now time.Time) error {
	if j.Status != JobStatusPending {
		return ErrInvalidState
	}
	j.Status = JobStatusProcessing
	j.LeaseOwner = &workerID
	j.AttemptCount++
	j.UpdatedAt = now
	return nil
}

// Complete transitions Processing -> Done and releases the lease.
func (j *Job) Complete(now time.Time) error {
	if j.Status != JobStatusProcessing {
		return ErrInvalidState
	}
	j.Status = JobStatusDone
	j.LeaseOwner = nil
	j.ErrorMessage = ""
	j.UpdatedAt = now
	return nil
}

// Fail records a failed attempt. With attempts left the job goes back to
// Pending for another dequeue; otherwise it dead-letters.
func (j *Job) Fail(errorMessage string, maxAttempts int, now time.Time) error {
	if j.Status != JobStatusProcessing {
		return ErrInvalidState
	}
	j.LeaseOwner = nil
	j.ErrorMessage = errorMessage
	if j.AttemptCount < maxAttempts {
		j.Status = JobStatusPending
	} else {
		j.Status = JobStatusDead
	}
	j.UpdatedAt = now
	return nil
}

// Reset forces the job back to Pending from any state and clears the lease.
// AttemptCount is deliberately preserved so the audit trail keeps counting
// total attempts across regenerations.
func (j *Job) Reset(now time.Time) {
	j.Status = JobStatusPending
	j.LeaseOwner = nil
	j.UpdatedAt = now
}
