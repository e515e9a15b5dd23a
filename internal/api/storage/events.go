package storage

import (
	"context"
	"fmt"

	"github.com/modelibr/thumbnail-service/internal/api/domain"
)

// InsertEvent appends one audit record. Events are never updated or deleted.
func (s *Storage) InsertEvent(ctx context.Context, event *domain.JobEvent) error {
	query := `
		INSERT INTO thumbnail_job_events (
			id, job_id, event_type, message, metadata, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var metadata interface{}
	if len(event.Metadata) > 0 {
		metadata = event.Metadata
	}

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.JobID,
		event.EventType,
		event.Message,
		metadata,
		event.ErrorMessage,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}
	return nil
}
