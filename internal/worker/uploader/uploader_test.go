package uploader

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelibr/thumbnail-service/internal/worker/encoder"
)

type fakeStore struct {
	failKinds map[string]bool
	uploads   []string
}

func (s *fakeStore) UploadArtifact(_ context.Context, kind, fileName, contentType string, data []byte) (string, error) {
	s.uploads = append(s.uploads, kind)
	if s.failKinds[kind] {
		return "", errors.New(kind + " upload refused")
	}
	return "/store/" + fileName, nil
}

func testArtifacts() (*encoder.Artifact, *encoder.Artifact) {
	animated := &encoder.Artifact{Data: []byte("gif-bytes"), ContentType: "image/gif", Width: 64, Height: 64}
	poster := &encoder.Artifact{Data: []byte("png"), ContentType: "image/png", Width: 64, Height: 64}
	return animated, poster
}

func newUploader(store Store) *Uploader {
	return NewUploader(store, slog.New(slog.DiscardHandler))
}

func TestUpload_BothSucceed(t *testing.T) {
	store := &fakeStore{}
	animated, poster := testArtifacts()

	result, err := newUploader(store).Upload(context.Background(), "job-1", animated, poster)

	require.NoError(t, err)
	assert.Equal(t, "/store/job-1.gif", result.ThumbnailPath)
	assert.Equal(t, "/store/job-1.png", result.PosterPath)
	assert.Equal(t, int64(len(animated.Data)), result.SizeBytes)
	assert.Equal(t, []string{"thumbnail", "poster"}, store.uploads)
}

func TestUpload_PosterFallbackWhenAnimatedFails(t *testing.T) {
	store := &fakeStore{failKinds: map[string]bool{"thumbnail": true}}
	animated, poster := testArtifacts()

	result, err := newUploader(store).Upload(context.Background(), "job-1", animated, poster)

	require.NoError(t, err)
	assert.Equal(t, "/store/job-1.png", result.ThumbnailPath, "poster becomes the thumbnail of record")
	assert.Equal(t, "/store/job-1.png", result.PosterPath)
	assert.Equal(t, int64(len(poster.Data)), result.SizeBytes)
}

func TestUpload_PosterFailureAfterAnimatedSuccessIsNonFatal(t *testing.T) {
	store := &fakeStore{failKinds: map[string]bool{"poster": true}}
	animated, poster := testArtifacts()

	result, err := newUploader(store).Upload(context.Background(), "job-1", animated, poster)

	require.NoError(t, err)
	assert.Equal(t, "/store/job-1.gif", result.ThumbnailPath)
	assert.Empty(t, result.PosterPath)
}

func TestUpload_BothFail(t *testing.T) {
	store := &fakeStore{failKinds: map[string]bool{"thumbnail": true, "poster": true}}
	animated, poster := testArtifacts()

	_, err := newUploader(store).Upload(context.Background(), "job-1", animated, poster)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "poster fallback failed")
}

func TestUpload_NoAnimatedArtifact(t *testing.T) {
	_, err := newUploader(&fakeStore{}).Upload(context.Background(), "job-1", nil, nil)
	require.Error(t, err)
}

func TestUpload_AnimatedFailsWithoutPoster(t *testing.T) {
	store := &fakeStore{failKinds: map[string]bool{"thumbnail": true}}
	animated, _ := testArtifacts()

	_, err := newUploader(store).Upload(context.Background(), "job-1", animated, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no poster fallback")
}
