package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelibr/thumbnail-service/internal/api/service"
	"github.com/modelibr/thumbnail-service/shared/rabbitmq"
)

// Publisher broadcasts ThumbnailStatusChanged to the notifications exchange.
// The UI push layer binds per-model queues against the routing key pattern
// thumbnail.status.<modelId>.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// NotifyStatusChanged publishes one status change. Callers treat errors as
// best-effort: a lost notification never affects the job state machine.
func (p *Publisher) NotifyStatusChanged(ctx context.Context, change service.StatusChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}

	routingKey := fmt.Sprintf("thumbnail.status.%d", change.ModelID)
	if err := p.client.PublishWithRetry(ctx, routingKey, body, "application/json"); err != nil {
		return fmt.Errorf("publish status change: %w", err)
	}

	p.logger.Debug("status change published",
		slog.Int64("model_id", change.ModelID),
		slog.String("status", change.Status),
		slog.String("routing_key", routingKey),
	)
	return nil
}
