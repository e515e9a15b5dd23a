package uploader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelibr/thumbnail-service/internal/worker/encoder"
)

// Store is the slice of AssetClient the uploader uses. Tests substitute a
// fake.
type Store interface {
	UploadArtifact(ctx context.Context, kind, fileName, contentType string, data []byte) (string, error)
}

// Result reports where the artifacts ended up.
type Result struct {
	ThumbnailPath string
	PosterPath    string
	SizeBytes     int64
}

// Uploader posts encoded artifacts to the asset store through two
// independent calls with fallback ordering: the poster is uploaded when a
// poster artifact exists, and serves as the thumbnail of record when the
// animated upload failed.
type Uploader struct {
	store  Store
	logger *slog.Logger
}

func NewUploader(store Store, logger *slog.Logger) *Uploader {
	return &Uploader{
		store:  store,
		logger: logger,
	}
}

// Upload sends the animated artifact and then the poster. If the animated
// upload fails but the poster succeeds, the poster becomes the thumbnail so
// the model still gets a static preview. Both failing fails the job attempt.
func (u *Uploader) Upload(ctx context.Context, jobID string, animated, poster *encoder.Artifact) (*Result, error) {
	if animated == nil {
		return nil, fmt.Errorf("no animated artifact to upload")
	}

	result := &Result{}

	animatedPath, animatedErr := u.store.UploadArtifact(ctx, "thumbnail", jobID+".gif", animated.ContentType, animated.Data)
	if animatedErr != nil {
		u.logger.Warn("animated upload failed",
			slog.String("job_id", jobID),
			slog.Any("error", animatedErr),
		)
	} else {
		result.ThumbnailPath = animatedPath
		result.SizeBytes = int64(len(animated.Data))
	}

	if poster != nil {
		posterPath, posterErr := u.store.UploadArtifact(ctx, "poster", jobID+".png", poster.ContentType, poster.Data)
		switch {
		case posterErr != nil && animatedErr != nil:
			return nil, fmt.Errorf("animated upload failed (%v); poster fallback failed: %w", animatedErr, posterErr)
		case posterErr != nil:
			// Animated made it; a missing poster is not worth failing the job.
			u.logger.Warn("poster upload failed",
				slog.String("job_id", jobID),
				slog.Any("error", posterErr),
			)
		case animatedErr != nil:
			result.ThumbnailPath = posterPath
			result.PosterPath = posterPath
			result.SizeBytes = int64(len(poster.Data))
			u.logger.Info("poster used as thumbnail fallback",
				slog.String("job_id", jobID),
				slog.String("path", posterPath),
			)
		default:
			result.PosterPath = posterPath
		}
	} else if animatedErr != nil {
		return nil, fmt.Errorf("animated upload failed with no poster fallback: %w", animatedErr)
	}

	return result, nil
}
