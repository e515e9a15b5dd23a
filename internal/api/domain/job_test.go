package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingJob() *Job {
	return &Job{
		ID:             "5f0c0a9e-33bd-4f86-9f57-1f8f4f3f2a10",
		ModelID:        7,
		ModelVersionID: 42,
		ContentHash:    "abc123",
		Status:         JobStatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusDone.Terminal())
	assert.True(t, JobStatusDead.Terminal())
}

func TestJob_Dequeue(t *testing.T) {
	job := pendingJob()
	now := time.Now()

	require.NoError(t, job.Dequeue("worker-1", now))

	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.AttemptCount)
	require.NotNil(t, job.LeaseOwner)
	assert.Equal(t, "worker-1", *job.LeaseOwner)

	// A processing job cannot be dequeued again.
	err := job.Dequeue("worker-2", now)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "worker-1", *job.LeaseOwner)
	assert.Equal(t, 1, job.AttemptCount)
}

func TestJob_Complete(t *testing.T) {
	job := pendingJob()
	now := time.Now()

	// Complete before dequeue is illegal and must not mutate.
	err := job.Complete(now)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, JobStatusPending, job.Status)

	require.NoError(t, job.Dequeue("worker-1", now))
	require.NoError(t, job.Complete(now))

	assert.Equal(t, JobStatusDone, job.Status)
	assert.Nil(t, job.LeaseOwner)
	assert.Empty(t, job.ErrorMessage)
}

func TestJob_Fail_RetryBudget(t *testing.T) {
	const maxAttempts = 3

	job := pendingJob()
	now := time.Now()

	// The job must reach Dead exactly when attemptCount == maxAttempts,
	// never before.
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		require.NoError(t, job.Dequeue("worker-1", now))
		require.NoError(t, job.Fail("render crash", maxAttempts, now))

		assert.Equal(t, attempt, job.AttemptCount)
		if attempt < maxAttempts {
			assert.Equal(t, JobStatusPending, job.Status, "attempt %d", attempt)
		} else {
			assert.Equal(t, JobStatusDead, job.Status)
		}
		assert.Nil(t, job.LeaseOwner)
		assert.Equal(t, "render crash", job.ErrorMessage)
	}
}

func TestJob_Fail_InvalidState(t *testing.T) {
	job := pendingJob()
	err := job.Fail("boom", 3, time.Now())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Empty(t, job.ErrorMessage)
}

func TestJob_Reset_PreservesAttempts(t *testing.T) {
	job := pendingJob()
	now := time.Now()

	require.NoError(t, job.Dequeue("worker-1", now))
	require.NoError(t, job.Fail("crash", 1, now))
	require.Equal(t, JobStatusDead, job.Status)

	job.Reset(now)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.LeaseOwner)
	// Total attempts across regenerations stay countable.
	assert.Equal(t, 1, job.AttemptCount)
}
