package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/modelibr/thumbnail-service/internal/api/domain"
	"github.com/modelibr/thumbnail-service/internal/api/dto"
	"github.com/modelibr/thumbnail-service/internal/api/service"
)

// EnqueueJob handles POST /api/v1/thumbnail-jobs
// Creates a render job for a model version, or returns the existing one when
// a non-terminal job (or an identical completed render) already covers it.
func (h *JobHandler) EnqueueJob(c *gin.Context) {
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid enqueue request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "modelId, modelVersionId and contentHash are required",
		})
		return
	}

	job, err := h.queue.Enqueue(c.Request.Context(), req.ModelID, req.ModelVersionID, req.ContentHash)
	if err != nil {
		h.logger.Error("Failed to enqueue job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// DequeueJob handles POST /api/v1/thumbnail-jobs/dequeue
// Grants a lease on the oldest pending job. 204 means the queue is empty,
// which is a normal outcome for a polling worker.
func (h *JobHandler) DequeueJob(c *gin.Context) {
	var req dto.DequeueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "workerId is required",
		})
		return
	}

	job, err := h.queue.Dequeue(c.Request.Context(), req.WorkerID)
	if err != nil {
		if errors.Is(err, domain.ErrNoPendingJob) {
			c.Status(http.StatusNoContent)
			return
		}
		h.logger.Error("Failed to dequeue job",
			slog.String("worker_id", req.WorkerID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to dequeue job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// CompleteJob handles POST /api/v1/thumbnail-jobs/:job_id/complete
func (h *JobHandler) CompleteJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req dto.CompleteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "thumbnailPath is required",
		})
		return
	}

	job, err := h.queue.Complete(c.Request.Context(), jobID, domain.ArtifactMeta{
		ThumbnailPath: req.ThumbnailPath,
		PosterPath:    req.PosterPath,
		SizeBytes:     req.SizeBytes,
		Width:         req.Width,
		Height:        req.Height,
	})
	if err != nil {
		h.transitionError(c, jobID, "complete", err)
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		ModelID: job.ModelID,
		Status:  string(domain.ThumbnailStatusReady),
		Message: "Thumbnail generated successfully",
	})
}

// FailJob handles POST /api/v1/thumbnail-jobs/:job_id/fail
func (h *JobHandler) FailJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req dto.FailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "errorMessage is required and must be at most 1000 characters",
		})
		return
	}

	job, err := h.queue.Fail(c.Request.Context(), jobID, req.ErrorMessage)
	if err != nil {
		h.transitionError(c, jobID, "fail", err)
		return
	}

	status := string(domain.ThumbnailStatusPending)
	message := "Attempt failed, job re-queued"
	if job.Status == domain.JobStatusDead {
		status = string(domain.ThumbnailStatusFailed)
		message = "Job failed permanently after exhausting retries"
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		ModelID: job.ModelID,
		Status:  status,
		Message: message,
	})
}

// ResetJob handles POST /api/v1/thumbnail-jobs/:job_id/reset
// Used by regenerate requests; forces the job back to Pending from any state.
func (h *JobHandler) ResetJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.queue.Reset(c.Request.Context(), jobID)
	if err != nil {
		h.transitionError(c, jobID, "reset", err)
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		ModelID: job.ModelID,
		Status:  string(domain.ThumbnailStatusPending),
		Message: "Job reset for regeneration",
	})
}

// AppendEvent handles POST /api/v1/thumbnail-jobs/:job_id/events
// Best effort from the worker's perspective; a failure here must never fail
// the job itself.
func (h *JobHandler) AppendEvent(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req dto.JobEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "eventType is required",
		})
		return
	}

	eventID, err := h.queue.AppendEvent(c.Request.Context(), jobID,
		req.EventType, req.Message, req.Metadata, req.ErrorMessage)
	if err != nil {
		h.transitionError(c, jobID, "append event", err)
		return
	}

	c.JSON(http.StatusOK, dto.EventResponse{EventID: eventID})
}

// GetJob handles GET /api/v1/thumbnail-jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.queue.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.transitionError(c, jobID, "get", err)
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /api/v1/thumbnail-jobs
// Keyset-paginated list for the admin/UI surface.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Status != "" && !domain.JobStatus(req.Status).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown status filter",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := service.JobFilter{
		Status:   domain.JobStatus(req.Status),
		ModelID:  req.ModelID,
		PageSize: req.PageSize,
	}
	if cursor != nil {
		filter.CursorCreatedAt = cursor.CreatedAt
		filter.CursorJobID = cursor.JobID
	}

	jobs, err := h.queue.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobResponse, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = toJobResponse(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// GetModelThumbnail handles GET /api/v1/models/:model_id/thumbnail
func (h *JobHandler) GetModelThumbnail(c *gin.Context) {
	var uri struct {
		ModelID int64 `uri:"model_id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "model_id must be numeric",
		})
		return
	}

	thumb, err := h.queue.GetThumbnailByModel(c.Request.Context(), uri.ModelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No thumbnail for this model",
		})
		return
	}

	resp := dto.ThumbnailResponse{
		ModelID:       thumb.ModelID,
		Status:        string(thumb.Status),
		ThumbnailPath: thumb.ThumbnailPath,
		PosterPath:    thumb.PosterPath,
		SizeBytes:     thumb.SizeBytes,
		Width:         thumb.Width,
		Height:        thumb.Height,
		ErrorMessage:  thumb.ErrorMessage,
	}
	if thumb.ProcessedAt != nil {
		resp.ProcessedAt = thumb.ProcessedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// jobID validates the :job_id path parameter.
func (h *JobHandler) jobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

// transitionError maps state-machine errors to HTTP codes: unknown jobs and
// illegal transitions are caller mistakes (400), everything else is a 500.
func (h *JobHandler) transitionError(c *gin.Context, jobID, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Job not found",
		})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Job is not in a state that allows this operation",
		})
	default:
		h.logger.Error("Job operation failed",
			slog.String("job_id", jobID),
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
	}
}

func toJobResponse(job *domain.Job) dto.JobResponse {
	resp := dto.JobResponse{
		ID:             job.ID,
		ModelID:        job.ModelID,
		ModelVersionID: job.ModelVersionID,
		ModelHash:      job.ContentHash,
		Status:         string(job.Status),
		AttemptCount:   job.AttemptCount,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
	if job.LeaseOwner != nil {
		resp.LeaseOwner = *job.LeaseOwner
	}
	return resp
}
