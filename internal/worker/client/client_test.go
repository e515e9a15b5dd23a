package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *QueueClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewQueueClient(server.URL, 5*time.Second, slog.New(slog.DiscardHandler))
}

func TestDequeue_ReturnsJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/thumbnail-jobs/dequeue", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "w1", body["workerId"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":             "job-1",
			"modelId":        7,
			"modelVersionId": 42,
			"modelHash":      "abc123",
			"status":         "Processing",
			"attemptCount":   1,
			"leaseOwner":     "w1",
		})
	})

	job, err := c.Dequeue(context.Background(), "w1")

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, int64(42), job.ModelVersionID)
	assert.Equal(t, "Processing", job.Status)
	assert.Equal(t, 1, job.AttemptCount)
}

func TestDequeue_EmptyQueueIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	job, err := c.Dequeue(context.Background(), "w1")

	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeue_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Dequeue(context.Background(), "w1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestComplete(t *testing.T) {
	var got ArtifactMeta
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/thumbnail-jobs/job-1/complete", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"job-1","status":"Done"}`))
	})

	err := c.Complete(context.Background(), "job-1", ArtifactMeta{
		ThumbnailPath: "/t/job-1.gif",
		SizeBytes:     2048,
		Width:         256,
		Height:        256,
	})

	require.NoError(t, err)
	assert.Equal(t, "/t/job-1.gif", got.ThumbnailPath)
	assert.Equal(t, int64(2048), got.SizeBytes)
}

func TestFail_ReturnsQueueVerdict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/thumbnail-jobs/job-1/fail", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "render crash", body["errorMessage"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"modelId": 7, "status": "Failed", "message": "retry budget exhausted"}`))
	})

	result, err := c.Fail(context.Background(), "job-1", "render crash")

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ModelID)
	assert.Equal(t, "Failed", result.Status)
}

func TestPostEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/thumbnail-jobs/job-1/events", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "RenderStarted", body["eventType"])
		assert.NotNil(t, body["metadata"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"eventId": "evt-1"}`))
	})

	err := c.PostEvent(context.Background(), "job-1", "RenderStarted", "", map[string]any{"frames": 30}, "")

	require.NoError(t, err)
}
