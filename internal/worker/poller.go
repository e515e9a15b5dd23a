package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelibr/thumbnail-service/internal/worker/client"
)

// maxErrorMessageLen matches the queue API's fail-message limit.
const maxErrorMessageLen = 1000

// pollLoop is one polling goroutine: dequeue, render, report, repeat. An
// empty queue sleeps the poll interval; a network failure while polling
// backs off longer and is never charged against any job's attempt budget.
func (w *Worker) pollLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Poller started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Poller stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return
		case <-ctx.Done():
			w.logger.Info("Poller stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, workerName)
		if err != nil {
			w.logger.Warn("Dequeue failed, backing off",
				slog.String("worker_name", workerName),
				slog.Any("error", err),
			)
			if !w.sleep(ctx, w.errorBackoff) {
				return
			}
			continue
		}

		if job == nil {
			if !w.sleep(ctx, w.pollInterval) {
				return
			}
			continue
		}

		w.processJob(ctx, workerName, job)
		// No cool-down on success: poll again immediately.
	}
}

// processJob runs the render pipeline for one leased job and reports the
// outcome. A panic anywhere in processing still produces a Fail call; a job
// is never silently abandoned in Processing state.
func (w *Worker) processJob(ctx context.Context, workerName string, job *client.Job) {
	w.logger.Info("Processing job",
		slog.String("worker_name", workerName),
		slog.String("job_id", job.ID),
		slog.Int64("model_id", job.ModelID),
		slog.Int("attempt", job.AttemptCount),
	)

	meta, err := w.runProcessor(ctx, job)
	if err != nil {
		w.reportFailure(ctx, workerName, job, err)
		return
	}

	if err := w.queue.Complete(ctx, job.ID, meta); err != nil {
		w.logger.Error("Failed to report completion",
			slog.String("worker_name", workerName),
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return
	}

	w.logger.Info("Job completed",
		slog.String("worker_name", workerName),
		slog.String("job_id", job.ID),
		slog.String("thumbnail_path", meta.ThumbnailPath),
	)
}

func (w *Worker) runProcessor(ctx context.Context, job *client.Job) (meta client.ArtifactMeta, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during processing: %v", r)
		}
	}()
	return w.processor.Process(ctx, job)
}

func (w *Worker) reportFailure(ctx context.Context, workerName string, job *client.Job, procErr error) {
	message := procErr.Error()
	if len(message) > maxErrorMessageLen {
		message = message[:maxErrorMessageLen]
	}

	result, err := w.queue.Fail(ctx, job.ID, message)
	if err != nil {
		w.logger.Error("Failed to report failure",
			slog.String("worker_name", workerName),
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return
	}

	w.logger.Warn("Job failed",
		slog.String("worker_name", workerName),
		slog.String("job_id", job.ID),
		slog.Int("attempt", job.AttemptCount),
		slog.String("queue_verdict", result.Status),
		slog.String("error_message", message),
	)
}

// sleep waits for d unless shutdown arrives first. Returns false on
// shutdown.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.stopChan:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
