package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelibr/thumbnail-service/internal/api/domain"
)

// Store is the persistence surface the queue service drives. The Postgres
// implementation lives in internal/api/storage; tests substitute an
// in-memory one.
type Store interface {
	InsertJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	GetLatestJobByVersion(ctx context.Context, modelVersionID int64) (*domain.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error)

	// DequeueOldestPending atomically claims the oldest Pending job for
	// workerID. It must be a single conditional transition: two concurrent
	// callers never receive the same job. Returns ErrNoPendingJob when the
	// queue is empty.
	DequeueOldestPending(ctx context.Context, workerID string) (*domain.Job, error)

	// CompleteJob and FailJob apply the Processing->Done and
	// Processing->{Pending,Dead} transitions conditionally, returning
	// ErrInvalidState without mutating when the job is not Processing.
	CompleteJob(ctx context.Context, jobID string) (*domain.Job, error)
	FailJob(ctx context.Context, jobID, errorMessage string, maxAttempts int) (*domain.Job, error)
	ResetJob(ctx context.Context, jobID string) (*domain.Job, error)

	EnsureThumbnail(ctx context.Context, modelID, modelVersionID int64) error
	SetThumbnailStatus(ctx context.Context, modelVersionID int64, status domain.ThumbnailStatus, errorMessage string) error
	SetThumbnailReady(ctx context.Context, modelVersionID int64, meta domain.ArtifactMeta, processedAt time.Time) error
	GetThumbnailByModel(ctx context.Context, modelID int64) (*domain.Thumbnail, error)

	InsertEvent(ctx context.Context, event *domain.JobEvent) error
}

// JobFilter narrows ListJobs. Cursor fields use keyset pagination on
// (created_at, id) descending.
type JobFilter struct {
	Status          domain.JobStatus
	ModelID         int64
	PageSize        int
	CursorCreatedAt time.Time
	CursorJobID     string
}

// StatusChange is the notification contract consumed by the UI push layer.
type StatusChange struct {
	ModelID      int64  `json:"modelId"`
	Status       string `json:"status"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Notifier fans status changes out to subscribers. Best effort: the queue
// never blocks or fails on notification problems.
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, change StatusChange) error
}

// QueueService owns the job lifecycle: enqueue with idempotent reuse,
// lease-granting dequeue, retry-or-dead-letter failure handling, and
// regeneration resets.
type QueueService struct {
	store       Store
	notifier    Notifier
	logger      *slog.Logger
	maxAttempts int
}

func NewQueueService(store Store, notifier Notifier, logger *slog.Logger, maxAttempts int) *QueueService {
	return &QueueService{
		store:       store,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Enqueue requests a thumbnail render for one model version. The contract is
// idempotent: while a non-terminal job exists for the version, the same job
// is returned instead of a duplicate. A version whose latest job is Done with
// the same content hash has already been rendered and is reused as well, so
// re-uploading identical geometry does not re-render.
func (s *QueueService) Enqueue(ctx context.Context, modelID, modelVersionID int64, contentHash string) (*domain.Job, error) {
	existing, err := s.store.GetLatestJobByVersion(ctx, modelVersionID)
	if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		return nil, fmt.Errorf("lookup job for version %d: %w", modelVersionID, err)
	}

	if existing != nil {
		if !existing.Status.Terminal() {
			s.logger.Debug("reusing active job",
				slog.String("job_id", existing.ID),
				slog.Int64("model_version_id", modelVersionID),
			)
			return existing, nil
		}
		if existing.Status == domain.JobStatusDone && existing.ContentHash == contentHash {
			s.logger.Debug("content hash unchanged, reusing completed job",
				slog.String("job_id", existing.ID),
				slog.String("content_hash", contentHash),
			)
			return existing, nil
		}
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:             uuid.New().String(),
		ModelID:        modelID,
		ModelVersionID: modelVersionID,
		ContentHash:    contentHash,
		Status:         domain.JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	if err := s.store.EnsureThumbnail(ctx, modelID, modelVersionID); err != nil {
		return nil, fmt.Errorf("ensure thumbnail row: %w", err)
	}

	s.logger.Info("job enqueued",
		slog.String("job_id", job.ID),
		slog.Int64("model_id", modelID),
		slog.Int64("model_version_id", modelVersionID),
	)
	s.notify(ctx, StatusChange{ModelID: modelID, Status: string(domain.ThumbnailStatusPending)})

	return job, nil
}

// Dequeue leases the oldest Pending job to workerID. Returns
// domain.ErrNoPendingJob when the queue is empty, which callers surface as an
// empty (204) response rather than an error.
func (s *QueueService) Dequeue(ctx context.Context, workerID string) (*domain.Job, error) {
	job, err := s.store.DequeueOldestPending(ctx, workerID)
	if err != nil {
		if errors.Is(err, domain.ErrNoPendingJob) {
			return nil, err
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	if err := s.store.SetThumbnailStatus(ctx, job.ModelVersionID, domain.ThumbnailStatusProcessing, ""); err != nil {
		s.logger.Warn("failed to mark thumbnail processing",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}

	s.logger.Info("job leased",
		slog.String("job_id", job.ID),
		slog.String("worker_id", workerID),
		slog.Int("attempt", job.AttemptCount),
	)
	s.notify(ctx, StatusChange{ModelID: job.ModelID, Status: string(domain.ThumbnailStatusProcessing)})

	return job, nil
}

// Complete finishes a Processing job and promotes the owning thumbnail to
// Ready with the reported artifact metadata.
func (s *QueueService) Complete(ctx context.Context, jobID string, meta domain.ArtifactMeta) (*domain.Job, error) {
	job, err := s.store.CompleteJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetThumbnailReady(ctx, job.ModelVersionID, meta, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("update thumbnail for job %s: %w", jobID, err)
	}

	s.logger.Info("job completed",
		slog.String("job_id", job.ID),
		slog.Int64("model_id", job.ModelID),
		slog.String("thumbnail_path", meta.ThumbnailPath),
	)
	s.notify(ctx, StatusChange{
		ModelID:      job.ModelID,
		Status:       string(domain.ThumbnailStatusReady),
		ThumbnailURL: meta.ThumbnailPath,
	})

	return job, nil
}

// Fail records a failed attempt. Below the attempt budget the job re-enters
// the queue; at the budget it dead-letters and the thumbnail goes Failed with
// the last error.
func (s *QueueService) Fail(ctx context.Context, jobID, errorMessage string) (*domain.Job, error) {
	job, err := s.store.FailJob(ctx, jobID, errorMessage, s.maxAttempts)
	if err != nil {
		return nil, err
	}

	if job.Status == domain.JobStatusDead {
		if err := s.store.SetThumbnailStatus(ctx, job.ModelVersionID, domain.ThumbnailStatusFailed, errorMessage); err != nil {
			s.logger.Warn("failed to mark thumbnail failed",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
		}
		s.logger.Warn("job dead-lettered",
			slog.String("job_id", job.ID),
			slog.Int("attempts", job.AttemptCount),
			slog.String("error_message", errorMessage),
		)
		s.notify(ctx, StatusChange{
			ModelID:      job.ModelID,
			Status:       string(domain.ThumbnailStatusFailed),
			ErrorMessage: errorMessage,
		})
		return job, nil
	}

	if err := s.store.SetThumbnailStatus(ctx, job.ModelVersionID, domain.ThumbnailStatusPending, errorMessage); err != nil {
		s.logger.Warn("failed to mark thumbnail pending",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
	s.logger.Info("job failed, re-queued for retry",
		slog.String("job_id", job.ID),
		slog.Int("attempt", job.AttemptCount),
		slog.Int("max_attempts", s.maxAttempts),
	)
	s.notify(ctx, StatusChange{ModelID: job.ModelID, Status: string(domain.ThumbnailStatusPending)})

	return job, nil
}

// Reset forces a job back to Pending regardless of state. Used by regenerate
// requests; attempt count is preserved on purpose.
func (s *QueueService) Reset(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.store.ResetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetThumbnailStatus(ctx, job.ModelVersionID, domain.ThumbnailStatusPending, ""); err != nil {
		s.logger.Warn("failed to reset thumbnail status",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}

	s.logger.Info("job reset",
		slog.String("job_id", job.ID),
		slog.Int("attempt_count", job.AttemptCount),
	)
	s.notify(ctx, StatusChange{ModelID: job.ModelID, Status: string(domain.ThumbnailStatusPending)})

	return job, nil
}

// AppendEvent writes one phase audit record and returns its id. Callers
// treat failures here as observational only.
func (s *QueueService) AppendEvent(ctx context.Context, jobID, eventType, message string, metadata []byte, errorMessage string) (string, error) {
	if _, err := s.store.GetJobByID(ctx, jobID); err != nil {
		return "", err
	}

	event := &domain.JobEvent{
		ID:           uuid.New().String(),
		JobID:        jobID,
		EventType:    eventType,
		Message:      message,
		Metadata:     metadata,
		ErrorMessage: errorMessage,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return event.ID, nil
}

func (s *QueueService) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.store.GetJobByID(ctx, jobID)
}

func (s *QueueService) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

func (s *QueueService) GetThumbnailByModel(ctx context.Context, modelID int64) (*domain.Thumbnail, error) {
	return s.store.GetThumbnailByModel(ctx, modelID)
}

func (s *QueueService) notify(ctx context.Context, change StatusChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyStatusChanged(ctx, change); err != nil {
		s.logger.Warn("status notification failed",
			slog.Int64("model_id", change.ModelID),
			slog.String("status", change.Status),
			slog.Any("error", err),
		)
	}
}
