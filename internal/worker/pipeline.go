package worker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"time"

	"github.com/modelibr/thumbnail-service/internal/worker/client"
	"github.com/modelibr/thumbnail-service/internal/worker/domain"
	"github.com/modelibr/thumbnail-service/internal/worker/encoder"
	"github.com/modelibr/thumbnail-service/internal/worker/events"
	"github.com/modelibr/thumbnail-service/internal/worker/render"
	"github.com/modelibr/thumbnail-service/internal/worker/texture"
	"github.com/modelibr/thumbnail-service/internal/worker/uploader"
)

// Assets is the asset-store surface the pipeline reads from.
type Assets interface {
	FetchManifest(ctx context.Context, modelVersionID int64) (*uploader.Manifest, error)
	DownloadFile(ctx context.Context, hash string) ([]byte, error)
}

// PageSource hands out browser pages for render sessions.
type PageSource interface {
	NewPage() (render.Page, error)
	ViewerURL() string
}

// ArtifactSink posts encoded artifacts to the asset store.
type ArtifactSink interface {
	Upload(ctx context.Context, jobID string, animated, poster *encoder.Artifact) (*uploader.Result, error)
}

// PipelineConfig holds the per-job render parameters.
type PipelineConfig struct {
	Render            render.Config
	WorkingResolution int
	FrameDelay        time.Duration
}

// Pipeline is the full render path for one job: download inputs, drive a
// browser session, encode, upload. It implements Processor.
type Pipeline struct {
	assets Assets
	pages  PageSource
	sink   ArtifactSink
	audit  *events.Logger
	cfg    PipelineConfig
	logger *slog.Logger
}

func NewPipeline(assets Assets, pages PageSource, sink ArtifactSink, audit *events.Logger, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		assets: assets,
		pages:  pages,
		sink:   sink,
		audit:  audit,
		cfg:    cfg,
		logger: logger,
	}
}

// Process renders one leased job end to end. Every error is returned to the
// poller, which turns it into a Fail call; nothing here crashes the worker.
func (p *Pipeline) Process(ctx context.Context, job *client.Job) (client.ArtifactMeta, error) {
	var meta client.ArtifactMeta

	p.audit.PhaseStarted(ctx, job.ID, "Download", map[string]any{"modelVersionId": job.ModelVersionID})

	manifest, err := p.assets.FetchManifest(ctx, job.ModelVersionID)
	if err != nil {
		p.audit.PhaseFailed(ctx, job.ID, "Download", err)
		return meta, fmt.Errorf("fetch manifest: %w", err)
	}

	format, err := render.ParseFormat(manifest.ModelFile.FileName)
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrPermanentInput, err)
		p.audit.PhaseFailed(ctx, job.ID, "Download", err)
		return meta, err
	}

	modelData, err := p.assets.DownloadFile(ctx, manifest.ModelFile.Hash)
	if err != nil {
		p.audit.PhaseFailed(ctx, job.ID, "Download", err)
		return meta, fmt.Errorf("download model: %w", err)
	}
	p.audit.PhaseCompleted(ctx, job.ID, "Download", map[string]any{"bytes": len(modelData)})

	p.audit.PhaseStarted(ctx, job.ID, "Render", nil)
	frames, err := p.renderFrames(ctx, format, modelData, manifest.Textures)
	if err != nil {
		p.audit.PhaseFailed(ctx, job.ID, "Render", err)
		return meta, err
	}
	p.audit.PhaseCompleted(ctx, job.ID, "Render", map[string]any{"frames": len(frames)})

	p.audit.PhaseStarted(ctx, job.ID, "Encode", nil)
	animated, poster, err := encoder.Encode(frames, encoder.Options{
		Width:      p.cfg.Render.Width,
		Height:     p.cfg.Render.Height,
		FrameDelay: p.cfg.FrameDelay,
	})
	if err != nil {
		p.audit.PhaseFailed(ctx, job.ID, "Encode", err)
		return meta, fmt.Errorf("encode: %w", err)
	}
	p.audit.PhaseCompleted(ctx, job.ID, "Encode", map[string]any{"sizeBytes": len(animated.Data)})

	p.audit.PhaseStarted(ctx, job.ID, "Upload", nil)
	result, err := p.sink.Upload(ctx, job.ID, animated, poster)
	if err != nil {
		p.audit.PhaseFailed(ctx, job.ID, "Upload", err)
		return meta, fmt.Errorf("upload: %w", err)
	}
	p.audit.PhaseCompleted(ctx, job.ID, "Upload", map[string]any{"thumbnailPath": result.ThumbnailPath})

	meta = client.ArtifactMeta{
		ThumbnailPath: result.ThumbnailPath,
		PosterPath:    result.PosterPath,
		SizeBytes:     result.SizeBytes,
		Width:         p.cfg.Render.Width,
		Height:        p.cfg.Render.Height,
	}
	return meta, nil
}

// renderFrames runs one browser session: load, texture, orbit capture. One
// tab per job; the tab is closed whatever happens.
func (p *Pipeline) renderFrames(ctx context.Context, format render.ModelFormat, modelData []byte, textures []uploader.TextureFile) ([]image.Image, error) {
	page, err := p.pages.NewPage()
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("open page: %w", err))
	}

	session := render.NewSession(page, p.cfg.Render, p.logger)
	defer session.Close()

	if err := session.Start(ctx, p.pages.ViewerURL()); err != nil {
		return nil, err
	}

	if _, err := session.LoadModel(ctx, format, modelData); err != nil {
		return nil, err
	}

	for _, tex := range textures {
		if err := p.applyTexture(ctx, session, tex); err != nil {
			return nil, err
		}
	}

	return session.CaptureOrbit(ctx)
}

// applyTexture downloads one texture, runs channel extraction when a single
// source channel is requested, and binds the result to the slot from the
// texture-type table.
func (p *Pipeline) applyTexture(ctx context.Context, session *render.Session, tex uploader.TextureFile) error {
	texType := texture.Type(tex.Type)
	if !texType.Valid() {
		p.logger.Warn("skipping texture with unknown type",
			slog.String("file", tex.FileName),
			slog.Int("texture_type", tex.Type),
		)
		return nil
	}

	slot, err := texType.Slot()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPermanentInput, err)
	}

	data, err := p.assets.DownloadFile(ctx, tex.Hash)
	if err != nil {
		return fmt.Errorf("download texture %s: %w", tex.FileName, err)
	}

	if tex.Channel != "" {
		ch, err := texture.ParseChannel(tex.Channel)
		if err != nil {
			return fmt.Errorf("%w: texture %s: %v", domain.ErrPermanentInput, tex.FileName, err)
		}

		src, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%w: decode texture %s: %v", domain.ErrPermanentInput, tex.FileName, err)
		}

		gray, err := texture.ExtractChannel(src, ch, p.cfg.WorkingResolution)
		if err != nil {
			return fmt.Errorf("extract channel %s of %s: %w", ch, tex.FileName, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, gray); err != nil {
			return fmt.Errorf("encode extracted texture: %w", err)
		}
		data = buf.Bytes()
	} else {
		// Normalize to PNG so the page always receives one encoding.
		src, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%w: decode texture %s: %v", domain.ErrPermanentInput, tex.FileName, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, src); err != nil {
			return fmt.Errorf("encode texture: %w", err)
		}
		data = buf.Bytes()
	}

	return session.ApplyTexture(ctx, slot, data)
}
