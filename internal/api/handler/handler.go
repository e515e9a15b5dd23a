package handler

import (
	"context"
	"log/slog"

	"github.com/modelibr/thumbnail-service/internal/api/domain"
	"github.com/modelibr/thumbnail-service/internal/api/service"
)

// Queue is the slice of QueueService the handlers need. Tests substitute a
// fake; production wires *service.QueueService.
type Queue interface {
	Enqueue(ctx context.Context, modelID, modelVersionID int64, contentHash string) (*domain.Job, error)
	Dequeue(ctx context.Context, workerID string) (*domain.Job, error)
	Complete(ctx context.Context, jobID string, meta domain.ArtifactMeta) (*domain.Job, error)
	Fail(ctx context.Context, jobID, errorMessage string) (*domain.Job, error)
	Reset(ctx context.Context, jobID string) (*domain.Job, error)
	AppendEvent(ctx context.Context, jobID, eventType, message string, metadata []byte, errorMessage string) (string, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter service.JobFilter) ([]domain.Job, error)
	GetThumbnailByModel(ctx context.Context, modelID int64) (*domain.Thumbnail, error)
}

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Logger *slog.Logger
	Queue  Queue
}

// JobHandler handles the thumbnail-job HTTP surface.
type JobHandler struct {
	logger *slog.Logger
	queue  Queue
}

func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		queue:  deps.Queue,
	}
}
