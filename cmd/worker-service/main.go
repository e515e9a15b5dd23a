package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/modelibr/thumbnail-service/internal/config"
	"github.com/modelibr/thumbnail-service/internal/worker"
	"github.com/modelibr/thumbnail-service/internal/worker/client"
	"github.com/modelibr/thumbnail-service/internal/worker/events"
	"github.com/modelibr/thumbnail-service/internal/worker/render"
	"github.com/modelibr/thumbnail-service/internal/worker/texture"
	"github.com/modelibr/thumbnail-service/internal/worker/uploader"
	"github.com/modelibr/thumbnail-service/shared/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// The texture-type table must be complete before any job is taken.
	if err := texture.ValidateSlotTable(); err != nil {
		return fmt.Errorf("invalid texture slot table: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	workerID := fmt.Sprintf("%s-%s", cfg.Worker.WorkerIDPrefix, uuid.New().String()[:8])

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_id", workerID),
	)

	// Queue API client
	queueClient := client.NewQueueClient(cfg.Worker.APIBaseURL, cfg.Worker.HTTPTimeout, appLogger.Logger)

	// Asset store client and uploader
	assetClient := uploader.NewAssetClient(
		cfg.AssetStore.BaseURL,
		cfg.AssetStore.UploadTimeout,
		cfg.AssetStore.RetryAttempts,
		cfg.AssetStore.RetryInterval,
		appLogger.Logger,
	)
	artifactUploader := uploader.NewUploader(assetClient, appLogger.Logger)

	// Headless browser
	browser, err := render.NewBrowser(appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer browser.Close()

	appLogger.Info("Headless browser started")

	// Render pipeline
	pipeline := worker.NewPipeline(
		assetClient,
		browser,
		artifactUploader,
		events.NewLogger(queueClient, appLogger.Logger),
		worker.PipelineConfig{
			Render: render.Config{
				Width:             cfg.Render.Width,
				Height:            cfg.Render.Height,
				FOVDegrees:        cfg.Render.FOVDegrees,
				StartAngle:        cfg.Render.StartAngle,
				EndAngle:          cfg.Render.EndAngle,
				AngleStep:         cfg.Render.AngleStep,
				CameraHeight:      cfg.Render.CameraHeight,
				BaseDistance:      cfg.Render.BaseDistance,
				NavigationTimeout: cfg.Render.NavigationTimeout,
			},
			WorkingResolution: cfg.Render.WorkingResolution,
			FrameDelay:        cfg.Render.FrameDelay,
		},
		appLogger.Logger,
	)

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:       appLogger.Logger,
		Queue:        queueClient,
		Processor:    pipeline,
		WorkerID:     workerID,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		ErrorBackoff: cfg.Worker.ErrorBackoff,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop worker
	cancel()

	// Give worker time to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}
