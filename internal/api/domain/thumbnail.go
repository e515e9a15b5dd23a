package domain

import "time"

// ThumbnailStatus is the UI-facing state of a model version's thumbnail.
type ThumbnailStatus string

const (
	ThumbnailStatusPending    ThumbnailStatus = "Pending"
	ThumbnailStatusProcessing ThumbnailStatus = "Processing"
	ThumbnailStatusReady      ThumbnailStatus = "Ready"
	ThumbnailStatusFailed     ThumbnailStatus = "Failed"
)

// Thumbnail is owned by a model version and created lazily by the first job
// that references the version. Its lifetime is independent of the job: a
// version keeps its row after the job dead-letters, carrying the last error.
type Thumbnail struct {
	ModelVersionID int64           `db:"model_version_id"`
	ModelID        int64           `db:"model_id"`
	Status         ThumbnailStatus `db:"status"`
	ThumbnailPath  string          `db:"thumbnail_path"`
	PosterPath     string          `db:"poster_path"`
	SizeBytes      int64           `db:"size_bytes"`
	Width          int             `db:"width"`
	Height         int             `db:"height"`
	ErrorMessage   string          `db:"error_message"`
	CreatedAt      time.Time       `db:"created_at"`
	ProcessedAt    *time.Time      `db:"processed_at"`
}

// ArtifactMeta is what a worker reports on completion.
type ArtifactMeta struct {
	ThumbnailPath string
	PosterPath    string
	SizeBytes     int64
	Width         int
	Height        int
}
