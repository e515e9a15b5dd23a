package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/modelibr/thumbnail-service/internal/worker/domain"
)

// Config holds the render pipeline parameters for one session.
type Config struct {
	Width             int
	Height            int
	FOVDegrees        float64
	StartAngle        float64
	EndAngle          float64
	AngleStep         float64
	CameraHeight      float64
	BaseDistance      float64
	NavigationTimeout time.Duration
}

// ModelInfo is what the page reports after a successful load.
type ModelInfo struct {
	PolyCount int  `json:"polyCount"`
	BoxSize   Vec3 `json:"boxSize"`
	Center    Vec3 `json:"center"`
}

// Session drives one browser page through a full render: load, texture,
// orbit capture. One session serves one job.
type Session struct {
	page   Page
	cfg    Config
	logger *slog.Logger

	model *ModelInfo
	flipY bool
}

func NewSession(page Page, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		page:   page,
		cfg:    cfg,
		logger: logger,
	}
}

type pageResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	DataURL string `json:"dataUrl"`
	Applied int    `json:"applied"`
}

// Start navigates the page to the viewer and initializes the in-page
// renderer at the output dimensions.
func (s *Session) Start(ctx context.Context, viewerURL string) error {
	navCtx := ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}

	if err := s.page.Navigate(navCtx, viewerURL); err != nil {
		return domain.NewRetryableError(fmt.Errorf("open viewer: %w", err))
	}

	var result pageResult
	expr := fmt.Sprintf("viewer.init(%d, %d, %g)", s.cfg.Width, s.cfg.Height, s.cfg.FOVDegrees)
	if err := s.page.Evaluate(ctx, expr, &result); err != nil {
		return domain.NewRetryableError(fmt.Errorf("init renderer: %w", err))
	}
	if !result.OK {
		return domain.NewRetryableError(fmt.Errorf("init renderer: %s", result.Error))
	}
	return nil
}

// LoadModel hands the model bytes to the page, which parses them with the
// format-specific loader and normalizes scale to the reference size. A parse
// failure is terminal for this attempt.
func (s *Session) LoadModel(ctx context.Context, format ModelFormat, data []byte) (*ModelInfo, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", format.MimeType(), base64.StdEncoding.EncodeToString(data))

	var info struct {
		pageResult
		ModelInfo
	}
	expr := fmt.Sprintf("viewer.loadModel(%q, %q)", string(format), dataURL)
	if err := s.page.Evaluate(ctx, expr, &info); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("load model: %w", err))
	}
	if !info.OK {
		return nil, fmt.Errorf("%w: load model: %s", domain.ErrPermanentInput, info.Error)
	}

	s.model = &info.ModelInfo
	s.flipY = format.FlipUV()

	s.logger.Info("model loaded",
		slog.String("format", string(format)),
		slog.Int("poly_count", info.PolyCount),
		slog.Bool("flip_uv", s.flipY),
	)
	return s.model, nil
}

// ApplyTexture binds an already-prepared texture image to a material slot.
// The session's per-model flip policy is applied, never a per-texture one.
func (s *Session) ApplyTexture(ctx context.Context, slot string, pngData []byte) error {
	if s.model == nil {
		return fmt.Errorf("apply texture: no model loaded")
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)

	var result pageResult
	expr := fmt.Sprintf("viewer.applyTexture(%q, %q, %t)", slot, dataURL, s.flipY)
	if err := s.page.Evaluate(ctx, expr, &result); err != nil {
		return domain.NewRetryableError(fmt.Errorf("apply texture %s: %w", slot, err))
	}
	if !result.OK {
		return fmt.Errorf("%w: apply texture %s: %s", domain.ErrPermanentInput, slot, result.Error)
	}

	s.logger.Debug("texture applied",
		slog.String("slot", slot),
		slog.Int("materials", result.Applied),
	)
	return nil
}

// CaptureOrbit sweeps the camera around the model and captures one frame per
// step, strictly in angle order. Frames render sequentially; the in-page
// renderer is not reentrant. Any failure discards the whole sequence.
func (s *Session) CaptureOrbit(ctx context.Context) ([]image.Image, error) {
	if s.model == nil {
		return nil, fmt.Errorf("capture orbit: no model loaded")
	}

	distance := CameraDistance(s.model.BoxSize, s.cfg.FOVDegrees, s.cfg.BaseDistance)
	frameCount := FrameCount(s.cfg.StartAngle, s.cfg.EndAngle, s.cfg.AngleStep)
	if frameCount == 0 {
		return nil, domain.ErrEmptyFrameSequence
	}

	s.logger.Info("starting orbit capture",
		slog.Int("frame_count", frameCount),
		slog.Float64("camera_distance", distance),
	)

	frames := make([]image.Image, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		angle := s.cfg.StartAngle + float64(i)*s.cfg.AngleStep
		pos := OrbitPosition(s.model.Center, angle, s.cfg.CameraHeight, distance)

		frame, err := s.captureFrame(ctx, pos)
		if err != nil {
			return nil, fmt.Errorf("frame %d (angle %.1f): %w", i, angle, err)
		}
		frames = append(frames, frame)
	}

	return frames, nil
}

func (s *Session) captureFrame(ctx context.Context, pos Vec3) (image.Image, error) {
	var result pageResult
	expr := fmt.Sprintf("viewer.setCamera(%g, %g, %g, %g, %g, %g)",
		pos.X, pos.Y, pos.Z, s.model.Center.X, s.model.Center.Y, s.model.Center.Z)
	if err := s.page.Evaluate(ctx, expr, &result); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("set camera: %w", err))
	}
	if !result.OK {
		return nil, domain.NewRetryableError(fmt.Errorf("set camera: %s", result.Error))
	}

	result = pageResult{}
	if err := s.page.Evaluate(ctx, "viewer.captureFrame()", &result); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("capture: %w", err))
	}
	if !result.OK {
		return nil, domain.NewRetryableError(fmt.Errorf("capture: %s", result.Error))
	}

	return decodeDataURL(result.DataURL)
}

func decodeDataURL(dataURL string) (image.Image, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, domain.NewRetryableError(fmt.Errorf("unexpected frame encoding"))
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("decode frame: %w", err))
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("decode frame png: %w", err))
	}
	return img, nil
}

// Close releases the browser tab.
func (s *Session) Close() error {
	return s.page.Close()
}
