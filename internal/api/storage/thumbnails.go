package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/modelibr/thumbnail-service/internal/api/domain"
)

// ErrThumbnailNotFound is returned when a model has no thumbnail row yet.
var ErrThumbnailNotFound = errors.New("thumbnail not found")

const thumbnailColumns = `model_version_id, model_id, status, thumbnail_path,
	poster_path, size_bytes, width, height, error_message, created_at, processed_at`

// EnsureThumbnail lazily creates the thumbnail row for a model version on
// first job reference. Existing rows are left untouched.
func (s *Storage) EnsureThumbnail(ctx context.Context, modelID, modelVersionID int64) error {
	query := `
		INSERT INTO thumbnails (model_version_id, model_id, status, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (model_version_id) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, modelVersionID, modelID, domain.ThumbnailStatusPending); err != nil {
		return fmt.Errorf("failed to ensure thumbnail: %w", err)
	}
	return nil
}

func (s *Storage) SetThumbnailStatus(ctx context.Context, modelVersionID int64, status domain.ThumbnailStatus, errorMessage string) error {
	query := `
		UPDATE thumbnails
		SET status = $1, error_message = $2
		WHERE model_version_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, status, errorMessage, modelVersionID); err != nil {
		return fmt.Errorf("failed to set thumbnail status: %w", err)
	}
	return nil
}

// SetThumbnailReady writes the artifact metadata, clears the last error, and
// stamps processed_at.
func (s *Storage) SetThumbnailReady(ctx context.Context, modelVersionID int64, meta domain.ArtifactMeta, processedAt time.Time) error {
	query := `
		UPDATE thumbnails
		SET status = $1,
		    thumbnail_path = $2,
		    poster_path = $3,
		    size_bytes = $4,
		    width = $5,
		    height = $6,
		    error_message = '',
		    processed_at = $7
		WHERE model_version_id = $8
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.ThumbnailStatusReady,
		meta.ThumbnailPath,
		meta.PosterPath,
		meta.SizeBytes,
		meta.Width,
		meta.Height,
		processedAt,
		modelVersionID,
	)
	if err != nil {
		return fmt.Errorf("failed to set thumbnail ready: %w", err)
	}
	return nil
}

// GetThumbnailByModel returns the newest thumbnail for a model across its
// versions, which is what the UI shows on the model card.
func (s *Storage) GetThumbnailByModel(ctx context.Context, modelID int64) (*domain.Thumbnail, error) {
	query := `
		SELECT ` + thumbnailColumns + `
		FROM thumbnails
		WHERE model_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var thumb domain.Thumbnail
	if err := s.db.GetContext(ctx, &thumb, query, modelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThumbnailNotFound
		}
		return nil, fmt.Errorf("failed to get thumbnail: %w", err)
	}
	return &thumb, nil
}
