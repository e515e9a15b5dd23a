package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/modelibr/thumbnail-service/internal/worker/client"
)

// Queue is the job API surface the poller drives.
type Queue interface {
	Dequeue(ctx context.Context, workerID string) (*client.Job, error)
	Complete(ctx context.Context, jobID string, meta client.ArtifactMeta) error
	Fail(ctx context.Context, jobID, errorMessage string) (*client.FailResult, error)
}

// Processor renders one leased job and reports the resulting artifact.
type Processor interface {
	Process(ctx context.Context, job *client.Job) (client.ArtifactMeta, error)
}

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	Queue        Queue
	Processor    Processor
	WorkerID     string
	Concurrency  int
	PollInterval time.Duration
	ErrorBackoff time.Duration
}

// Worker represents the background render worker
type Worker struct {
	logger       *slog.Logger
	queue        Queue
	processor    Processor
	workerID     string
	concurrency  int
	pollInterval time.Duration
	errorBackoff time.Duration
	wg           sync.WaitGroup
	stopChan     chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:       cfg.Logger,
		queue:        cfg.Queue,
		processor:    cfg.Processor,
		workerID:     cfg.WorkerID,
		concurrency:  cfg.Concurrency,
		pollInterval: cfg.PollInterval,
		errorBackoff: cfg.ErrorBackoff,
		stopChan:     make(chan struct{}),
	}
}

// Start spawns the polling goroutines and blocks until the context is
// canceled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.pollLoop(ctx, i)
	}

	select {
	case <-ctx.Done():
		w.logger.Info("Worker context canceled, stopping...")
	case <-w.stopChan:
	}

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
