package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelibr/thumbnail-service/internal/api/domain"
	"github.com/modelibr/thumbnail-service/internal/api/handler"
	"github.com/modelibr/thumbnail-service/internal/api/router"
	"github.com/modelibr/thumbnail-service/internal/api/service"
)

const testJobID = "3f2a1b4c-9d8e-4f00-a1b2-c3d4e5f60789"

// fakeQueue satisfies handler.Queue with canned behavior per test.
type fakeQueue struct {
	dequeueJob  *domain.Job
	dequeueErr  error
	completeErr error
	failErr     error
	failJob     *domain.Job

	failedWith string
}

func (f *fakeQueue) Enqueue(_ context.Context, modelID, versionID int64, hash string) (*domain.Job, error) {
	now := time.Now()
	return &domain.Job{
		ID: testJobID, ModelID: modelID, ModelVersionID: versionID,
		ContentHash: hash, Status: domain.JobStatusPending,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (f *fakeQueue) Dequeue(_ context.Context, workerID string) (*domain.Job, error) {
	if f.dequeueErr != nil {
		return nil, f.dequeueErr
	}
	if f.dequeueJob != nil {
		owner := workerID
		f.dequeueJob.LeaseOwner = &owner
	}
	return f.dequeueJob, nil
}

func (f *fakeQueue) Complete(_ context.Context, jobID string, _ domain.ArtifactMeta) (*domain.Job, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &domain.Job{ID: jobID, ModelID: 7, Status: domain.JobStatusDone}, nil
}

func (f *fakeQueue) Fail(_ context.Context, jobID, errorMessage string) (*domain.Job, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.failedWith = errorMessage
	if f.failJob != nil {
		return f.failJob, nil
	}
	return &domain.Job{ID: jobID, ModelID: 7, Status: domain.JobStatusPending}, nil
}

func (f *fakeQueue) Reset(_ context.Context, jobID string) (*domain.Job, error) {
	return &domain.Job{ID: jobID, ModelID: 7, Status: domain.JobStatusPending}, nil
}

func (f *fakeQueue) AppendEvent(_ context.Context, _, _, _ string, _ []byte, _ string) (string, error) {
	return "9a7e6d5c-1111-2222-3333-444455556666", nil
}

func (f *fakeQueue) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (f *fakeQueue) ListJobs(_ context.Context, _ service.JobFilter) ([]domain.Job, error) {
	return nil, nil
}

func (f *fakeQueue) GetThumbnailByModel(_ context.Context, _ int64) (*domain.Thumbnail, error) {
	return nil, domain.ErrJobNotFound
}

func setupRouter(q handler.Queue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return router.SetupRouter(&handler.Dependencies{
		Logger: slog.New(slog.DiscardHandler),
		Queue:  q,
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDequeue_ReturnsLeasedJob(t *testing.T) {
	now := time.Now()
	q := &fakeQueue{dequeueJob: &domain.Job{
		ID: testJobID, ModelID: 7, ModelVersionID: 42, ContentHash: "h1",
		Status: domain.JobStatusProcessing, AttemptCount: 1,
		CreatedAt: now, UpdatedAt: now,
	}}
	r := setupRouter(q)

	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", `{"workerId":"w1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testJobID, resp["id"])
	assert.Equal(t, "Processing", resp["status"])
	assert.Equal(t, "h1", resp["modelHash"])
	assert.Equal(t, float64(1), resp["attemptCount"])
	assert.Equal(t, "w1", resp["leaseOwner"])
}

func TestDequeue_EmptyQueueIs204(t *testing.T) {
	q := &fakeQueue{dequeueErr: domain.ErrNoPendingJob}
	r := setupRouter(q)

	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", `{"workerId":"w1"}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestDequeue_MissingWorkerID(t *testing.T) {
	r := setupRouter(&fakeQueue{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComplete_InvalidStateIs400(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "job not found", err: domain.ErrJobNotFound},
		{name: "not processing", err: domain.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(&fakeQueue{completeErr: tt.err})

			w := doJSON(t, r, http.MethodPost,
				"/api/v1/thumbnail-jobs/"+testJobID+"/complete",
				`{"thumbnailPath":"/t/x.gif","sizeBytes":10,"width":256,"height":256}`)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestComplete_Success(t *testing.T) {
	r := setupRouter(&fakeQueue{})

	w := doJSON(t, r, http.MethodPost,
		"/api/v1/thumbnail-jobs/"+testJobID+"/complete",
		`{"thumbnailPath":"/t/x.gif","sizeBytes":10,"width":256,"height":256}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Ready", resp["status"])
	assert.Equal(t, float64(7), resp["modelId"])
}

func TestComplete_MalformedJobID(t *testing.T) {
	r := setupRouter(&fakeQueue{})

	w := doJSON(t, r, http.MethodPost,
		"/api/v1/thumbnail-jobs/not-a-uuid/complete",
		`{"thumbnailPath":"/t/x.gif"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFail_EmptyMessageIs400(t *testing.T) {
	q := &fakeQueue{}
	r := setupRouter(q)

	w := doJSON(t, r, http.MethodPost,
		"/api/v1/thumbnail-jobs/"+testJobID+"/fail", `{"errorMessage":""}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, q.failedWith)
}

func TestFail_MessageTooLongIs400(t *testing.T) {
	r := setupRouter(&fakeQueue{})

	long := strings.Repeat("x", 1001)
	w := doJSON(t, r, http.MethodPost,
		"/api/v1/thumbnail-jobs/"+testJobID+"/fail",
		`{"errorMessage":"`+long+`"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFail_ReportsRetryVsDead(t *testing.T) {
	t.Run("retry pending", func(t *testing.T) {
		r := setupRouter(&fakeQueue{})

		w := doJSON(t, r, http.MethodPost,
			"/api/v1/thumbnail-jobs/"+testJobID+"/fail",
			`{"errorMessage":"render crash"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Pending", resp["status"])
	})

	t.Run("dead letter", func(t *testing.T) {
		r := setupRouter(&fakeQueue{failJob: &domain.Job{
			ID: testJobID, ModelID: 7, Status: domain.JobStatusDead,
		}})

		w := doJSON(t, r, http.MethodPost,
			"/api/v1/thumbnail-jobs/"+testJobID+"/fail",
			`{"errorMessage":"render crash"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Failed", resp["status"])
	})
}

func TestAppendEvent(t *testing.T) {
	r := setupRouter(&fakeQueue{})

	w := doJSON(t, r, http.MethodPost,
		"/api/v1/thumbnail-jobs/"+testJobID+"/events",
		`{"eventType":"DownloadStarted","message":"fetching model","metadata":{"bytes":1024}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["eventId"])
}

func TestAppendEvent_MissingTypeIs400(t *testing.T) {
	r := setupRouter(&fakeQueue{})

	w := doJSON(t, r, http.MethodPost,
		"/api/v1/thumbnail-jobs/"+testJobID+"/events", `{"message":"no type"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnqueue_Validation(t *testing.T) {
	r := setupRouter(&fakeQueue{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", `{"modelId":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs",
		`{"modelId":1,"modelVersionId":2,"contentHash":"abc"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
