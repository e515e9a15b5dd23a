package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelibr/thumbnail-service/internal/worker/client"
	"github.com/modelibr/thumbnail-service/internal/worker/domain"
	"github.com/modelibr/thumbnail-service/internal/worker/encoder"
	"github.com/modelibr/thumbnail-service/internal/worker/events"
	"github.com/modelibr/thumbnail-service/internal/worker/render"
	"github.com/modelibr/thumbnail-service/internal/worker/uploader"
)

type fakeAssets struct {
	manifest    *uploader.Manifest
	manifestErr error
	files       map[string][]byte
}

func (a *fakeAssets) FetchManifest(_ context.Context, modelVersionID int64) (*uploader.Manifest, error) {
	if a.manifestErr != nil {
		return nil, a.manifestErr
	}
	return a.manifest, nil
}

func (a *fakeAssets) DownloadFile(_ context.Context, hash string) ([]byte, error) {
	data, ok := a.files[hash]
	if !ok {
		return nil, fmt.Errorf("no such file %s", hash)
	}
	return data, nil
}

// scriptedPage answers viewer calls with canned results, emitting valid
// frames at the configured output size.
type scriptedPage struct {
	width  int
	height int
}

func (p *scriptedPage) Navigate(_ context.Context, _ string) error { return nil }

func (p *scriptedPage) Evaluate(_ context.Context, expression string, out any) error {
	var response string
	switch {
	case strings.HasPrefix(expression, "viewer.init"),
		strings.HasPrefix(expression, "viewer.setCamera"):
		response = `{"ok": true}`
	case strings.HasPrefix(expression, "viewer.loadModel"):
		response = `{"ok": true, "polyCount": 100,
			"boxSize": {"x": 2, "y": 2, "z": 2},
			"center": {"x": 0, "y": 1, "z": 0}}`
	case strings.HasPrefix(expression, "viewer.applyTexture"):
		response = `{"ok": true, "applied": 1}`
	case strings.HasPrefix(expression, "viewer.captureFrame"):
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, p.width, p.height))); err != nil {
			return err
		}
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		response = fmt.Sprintf(`{"ok": true, "dataUrl": %q}`, dataURL)
	default:
		return fmt.Errorf("unexpected expression: %s", expression)
	}
	return json.Unmarshal([]byte(response), out)
}

func (p *scriptedPage) Close() error { return nil }

type fakePageSource struct {
	width  int
	height int
}

func (s *fakePageSource) NewPage() (render.Page, error) {
	return &scriptedPage{width: s.width, height: s.height}, nil
}

func (s *fakePageSource) ViewerURL() string { return "file:///viewer.html" }

type fakeSink struct {
	result *uploader.Result
	err    error
}

func (s *fakeSink) Upload(_ context.Context, jobID string, animated, poster *encoder.Artifact) (*uploader.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type recordingEventSink struct {
	types []string
}

func (s *recordingEventSink) PostEvent(_ context.Context, _, eventType, _ string, _ map[string]any, _ string) error {
	s.types = append(s.types, eventType)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newTestPipeline(assets *fakeAssets, sink *fakeSink, audit *recordingEventSink) *Pipeline {
	logger := slog.New(slog.DiscardHandler)
	return NewPipeline(
		assets,
		&fakePageSource{width: 64, height: 48},
		sink,
		events.NewLogger(audit, logger),
		PipelineConfig{
			Render: render.Config{
				Width:        64,
				Height:       48,
				FOVDegrees:   45,
				StartAngle:   0,
				EndAngle:     360,
				AngleStep:    36,
				CameraHeight: 1,
				BaseDistance: 3,
			},
			WorkingResolution: 32,
			FrameDelay:        80 * time.Millisecond,
		},
		logger,
	)
}

func TestPipeline_ProcessEndToEnd(t *testing.T) {
	assets := &fakeAssets{
		manifest: &uploader.Manifest{
			ModelFile: uploader.TextureFile{FileName: "chair.glb", Hash: "model-hash"},
			Textures: []uploader.TextureFile{
				{FileName: "rough.png", Hash: "tex-hash", Type: 5, Channel: "G"},
			},
		},
		files: map[string][]byte{
			"model-hash": []byte("glb-bytes"),
			"tex-hash":   pngBytes(t, 16, 16),
		},
	}
	sink := &fakeSink{result: &uploader.Result{
		ThumbnailPath: "/t/job-1.gif",
		PosterPath:    "/t/job-1.png",
		SizeBytes:     4096,
	}}
	audit := &recordingEventSink{}

	meta, err := newTestPipeline(assets, sink, audit).Process(context.Background(),
		&client.Job{ID: "job-1", ModelVersionID: 42})

	require.NoError(t, err)
	assert.Equal(t, "/t/job-1.gif", meta.ThumbnailPath)
	assert.Equal(t, "/t/job-1.png", meta.PosterPath)
	assert.Equal(t, int64(4096), meta.SizeBytes)
	assert.Equal(t, 64, meta.Width)
	assert.Equal(t, 48, meta.Height)

	assert.Equal(t, []string{
		"DownloadStarted", "DownloadCompleted",
		"RenderStarted", "RenderCompleted",
		"EncodeStarted", "EncodeCompleted",
		"UploadStarted", "UploadCompleted",
	}, audit.types)
}

func TestPipeline_UnrecognizedModelFormatIsPermanent(t *testing.T) {
	assets := &fakeAssets{
		manifest: &uploader.Manifest{
			ModelFile: uploader.TextureFile{FileName: "model.stl", Hash: "model-hash"},
		},
	}
	audit := &recordingEventSink{}

	_, err := newTestPipeline(assets, &fakeSink{}, audit).Process(context.Background(),
		&client.Job{ID: "job-1", ModelVersionID: 42})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPermanentInput)
	assert.Contains(t, audit.types, "DownloadFailed")
}

func TestPipeline_ManifestFailureFailsAttempt(t *testing.T) {
	assets := &fakeAssets{manifestErr: errors.New("asset store unreachable")}
	audit := &recordingEventSink{}

	_, err := newTestPipeline(assets, &fakeSink{}, audit).Process(context.Background(),
		&client.Job{ID: "job-1", ModelVersionID: 42})

	require.Error(t, err)
	assert.Equal(t, []string{"DownloadStarted", "DownloadFailed"}, audit.types)
}

func TestPipeline_UploadFailureFailsAttempt(t *testing.T) {
	assets := &fakeAssets{
		manifest: &uploader.Manifest{
			ModelFile: uploader.TextureFile{FileName: "chair.glb", Hash: "model-hash"},
		},
		files: map[string][]byte{"model-hash": []byte("glb-bytes")},
	}
	audit := &recordingEventSink{}

	_, err := newTestPipeline(assets, &fakeSink{err: errors.New("store down")}, audit).Process(
		context.Background(), &client.Job{ID: "job-1", ModelVersionID: 42})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload")
	assert.Contains(t, audit.types, "UploadFailed")
}

func TestPipeline_SkipsUnknownTextureTypes(t *testing.T) {
	assets := &fakeAssets{
		manifest: &uploader.Manifest{
			ModelFile: uploader.TextureFile{FileName: "chair.glb", Hash: "model-hash"},
			Textures: []uploader.TextureFile{
				{FileName: "odd.png", Hash: "tex-hash", Type: 99},
			},
		},
		files: map[string][]byte{"model-hash": []byte("glb-bytes")},
	}
	sink := &fakeSink{result: &uploader.Result{ThumbnailPath: "/t/job-1.gif"}}

	meta, err := newTestPipeline(assets, sink, &recordingEventSink{}).Process(
		context.Background(), &client.Job{ID: "job-1", ModelVersionID: 42})

	require.NoError(t, err)
	assert.Equal(t, "/t/job-1.gif", meta.ThumbnailPath)
}
