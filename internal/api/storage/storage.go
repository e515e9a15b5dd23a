package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/modelibr/thumbnail-service/internal/api/domain"
	"github.com/modelibr/thumbnail-service/internal/api/service"
	"github.com/modelibr/thumbnail-service/shared/postgresql"
)

const jobColumns = `id, model_id, model_version_id, content_hash, status,
	attempt_count, lease_owner, error_message, created_at, updated_at`

// Storage is the Postgres job store. All state transitions are single
// conditional statements so concurrent workers cannot race each other.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

func (s *Storage) InsertJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO thumbnail_jobs (
			id, model_id, model_version_id, content_hash,
			status, attempt_count, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.ModelID,
		job.ModelVersionID,
		job.ContentHash,
		job.Status,
		job.AttemptCount,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM thumbnail_jobs WHERE id = $1`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// GetLatestJobByVersion returns the most recent job for a model version.
// Because the store allows at most one non-terminal job per version, the
// latest row is the one enqueue has to consider for reuse.
func (s *Storage) GetLatestJobByVersion(ctx context.Context, modelVersionID int64) (*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM thumbnail_jobs
		WHERE model_version_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, modelVersionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job for version: %w", err)
	}
	return &job, nil
}

// DequeueOldestPending claims the oldest Pending job in one statement.
// FOR UPDATE SKIP LOCKED makes concurrent dequeues pick disjoint rows; the
// surrounding UPDATE is the only place cross-process correctness matters.
func (s *Storage) DequeueOldestPending(ctx context.Context, workerID string) (*domain.Job, error) {
	query := `
		UPDATE thumbnail_jobs
		SET status = $1,
		    lease_owner = $2,
		    attempt_count = attempt_count + 1,
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM thumbnail_jobs
			WHERE status = $3
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStatusProcessing, workerID, domain.JobStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoPendingJob
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	s.logger.Debug("job claimed",
		slog.String("job_id", job.ID),
		slog.String("worker_id", workerID),
	)
	return &job, nil
}

func (s *Storage) CompleteJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE thumbnail_jobs
		SET status = $1,
		    lease_owner = NULL,
		    error_message = '',
		    updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStatusDone, jobID, domain.JobStatusProcessing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.transitionConflict(ctx, jobID)
		}
		return nil, fmt.Errorf("failed to complete job: %w", err)
	}
	return &job, nil
}

// FailJob applies the retry-or-dead-letter decision inside the statement so
// the attempt comparison and the transition cannot be split by a concurrent
// writer.
func (s *Storage) FailJob(ctx context.Context, jobID, errorMessage string, maxAttempts int) (*domain.Job, error) {
	query := `
		UPDATE thumbnail_jobs
		SET status = CASE WHEN attempt_count < $1 THEN $2 ELSE $3 END,
		    lease_owner = NULL,
		    error_message = $4,
		    updated_at = NOW()
		WHERE id = $5 AND status = $6
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		maxAttempts, domain.JobStatusPending, domain.JobStatusDead,
		errorMessage, jobID, domain.JobStatusProcessing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.transitionConflict(ctx, jobID)
		}
		return nil, fmt.Errorf("failed to fail job: %w", err)
	}
	return &job, nil
}

func (s *Storage) ResetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE thumbnail_jobs
		SET status = $1,
		    lease_owner = NULL,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING ` + jobColumns

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, domain.JobStatusPending, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to reset job: %w", err)
	}
	return &job, nil
}

func (s *Storage) ListJobs(ctx context.Context, filter service.JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM thumbnail_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.ModelID != 0 {
		query += fmt.Sprintf(" AND model_id = $%d", argIdx)
		args = append(args, filter.ModelID)
		argIdx++
	}

	if filter.CursorJobID != "" {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.CursorCreatedAt, filter.CursorJobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra row so the handler can tell whether more pages exist.
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// transitionConflict distinguishes a missing job from one in the wrong state
// after a conditional update matched no rows.
func (s *Storage) transitionConflict(ctx context.Context, jobID string) error {
	if _, err := s.GetJobByID(ctx, jobID); err != nil {
		return err
	}
	return domain.ErrInvalidState
}
