package dto

import "encoding/json"

// EnqueueJobRequest creates or reuses a render job for a model version.
type EnqueueJobRequest struct {
	ModelID        int64  `json:"modelId" binding:"required"`
	ModelVersionID int64  `json:"modelVersionId" binding:"required"`
	ContentHash    string `json:"contentHash" binding:"required"`
}

// DequeueRequest asks for a lease on the oldest pending job.
type DequeueRequest struct {
	WorkerID string `json:"workerId" binding:"required"`
}

// CompleteJobRequest carries the artifact metadata a worker reports when the
// render pipeline finished.
type CompleteJobRequest struct {
	ThumbnailPath string `json:"thumbnailPath" binding:"required"`
	PosterPath    string `json:"posterPath"`
	SizeBytes     int64  `json:"sizeBytes"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
}

// FailJobRequest reports a failed render attempt.
type FailJobRequest struct {
	ErrorMessage string `json:"errorMessage" binding:"required,max=1000"`
}

// JobEventRequest appends one phase audit event.
type JobEventRequest struct {
	EventType    string          `json:"eventType" binding:"required"`
	Message      string          `json:"message"`
	Metadata     json.RawMessage `json:"metadata"`
	ErrorMessage string          `json:"errorMessage"`
}

// JobResponse is the wire form of a queue job.
type JobResponse struct {
	ID             string `json:"id"`
	ModelID        int64  `json:"modelId"`
	ModelVersionID int64  `json:"modelVersionId"`
	ModelHash      string `json:"modelHash"`
	Status         string `json:"status"`
	AttemptCount   int    `json:"attemptCount"`
	LeaseOwner     string `json:"leaseOwner,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

// StatusResponse acknowledges a complete/fail/reset transition.
type StatusResponse struct {
	ModelID int64  `json:"modelId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// EventResponse acknowledges an appended audit event.
type EventResponse struct {
	EventID string `json:"eventId"`
}

// ListJobsRequest filters and paginates the job list.
type ListJobsRequest struct {
	Status   string `form:"status"`
	ModelID  int64  `form:"model_id"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// ListJobsResponse is one page of jobs plus the next keyset cursor.
type ListJobsResponse struct {
	Jobs       []JobResponse `json:"jobs"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// ThumbnailResponse is the UI view of a model's thumbnail.
type ThumbnailResponse struct {
	ModelID       int64  `json:"modelId"`
	Status        string `json:"status"`
	ThumbnailPath string `json:"thumbnailPath,omitempty"`
	PosterPath    string `json:"posterPath,omitempty"`
	SizeBytes     int64  `json:"sizeBytes,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	ProcessedAt   string `json:"processedAt,omitempty"`
}
