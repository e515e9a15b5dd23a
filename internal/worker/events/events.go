package events

import (
	"context"
	"log/slog"
)

// Sink accepts audit records. Production wires client.QueueClient.
type Sink interface {
	PostEvent(ctx context.Context, jobID, eventType, message string, metadata map[string]any, errorMessage string) error
}

// Logger appends append-only audit records per pipeline phase. Every append
// is best effort: an audit failure never aborts or retries the job itself.
type Logger struct {
	sink   Sink
	logger *slog.Logger
}

func NewLogger(sink Sink, logger *slog.Logger) *Logger {
	return &Logger{
		sink:   sink,
		logger: logger,
	}
}

// PhaseStarted records the start of a pipeline phase.
func (l *Logger) PhaseStarted(ctx context.Context, jobID, phase string, metadata map[string]any) {
	l.post(ctx, jobID, phase+"Started", "", metadata, "")
}

// PhaseCompleted records a successful pipeline phase.
func (l *Logger) PhaseCompleted(ctx context.Context, jobID, phase string, metadata map[string]any) {
	l.post(ctx, jobID, phase+"Completed", "", metadata, "")
}

// PhaseFailed records a failed pipeline phase with its error.
func (l *Logger) PhaseFailed(ctx context.Context, jobID, phase string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	l.post(ctx, jobID, phase+"Failed", "", nil, message)
}

func (l *Logger) post(ctx context.Context, jobID, eventType, message string, metadata map[string]any, errorMessage string) {
	if l.sink == nil {
		return
	}
	if err := l.sink.PostEvent(ctx, jobID, eventType, message, metadata, errorMessage); err != nil {
		l.logger.Warn("audit event append failed",
			slog.String("job_id", jobID),
			slog.String("event_type", eventType),
			slog.Any("error", err),
		)
	}
}
