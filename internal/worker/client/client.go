package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Job is the wire representation of a leased render job.
type Job struct {
	ID             string    `json:"id"`
	ModelID        int64     `json:"modelId"`
	ModelVersionID int64     `json:"modelVersionId"`
	ModelHash      string    `json:"modelHash"`
	Status         string    `json:"status"`
	AttemptCount   int       `json:"attemptCount"`
	LeaseOwner     string    `json:"leaseOwner"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ArtifactMeta reports the encoded artifact on completion.
type ArtifactMeta struct {
	ThumbnailPath string `json:"thumbnailPath"`
	PosterPath    string `json:"posterPath,omitempty"`
	SizeBytes     int64  `json:"sizeBytes"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
}

// FailResult is the queue's verdict after a reported failure.
type FailResult struct {
	ModelID int64  `json:"modelId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// QueueClient talks to the thumbnail-job API on behalf of one worker.
type QueueClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewQueueClient(baseURL string, timeout time.Duration, logger *slog.Logger) *QueueClient {
	return &QueueClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Dequeue asks for a lease. Returns (nil, nil) when the queue is empty.
func (c *QueueClient) Dequeue(ctx context.Context, workerID string) (*Job, error) {
	body := map[string]string{"workerId": workerID}

	resp, err := c.postJSON(ctx, c.baseURL+"/api/v1/thumbnail-jobs/dequeue", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var job Job
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return nil, fmt.Errorf("decode dequeue response: %w", err)
		}
		return &job, nil
	default:
		return nil, unexpectedStatus("dequeue", resp)
	}
}

// Complete reports a finished render with its artifact metadata.
func (c *QueueClient) Complete(ctx context.Context, jobID string, meta ArtifactMeta) error {
	url := fmt.Sprintf("%s/api/v1/thumbnail-jobs/%s/complete", c.baseURL, jobID)

	resp, err := c.postJSON(ctx, url, meta)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus("complete", resp)
	}
	return nil
}

// Fail reports a failed attempt. The queue decides between retry and
// dead-letter; the returned status reflects that decision.
func (c *QueueClient) Fail(ctx context.Context, jobID, errorMessage string) (*FailResult, error) {
	url := fmt.Sprintf("%s/api/v1/thumbnail-jobs/%s/fail", c.baseURL, jobID)
	body := map[string]string{"errorMessage": errorMessage}

	resp, err := c.postJSON(ctx, url, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus("fail", resp)
	}

	var result FailResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode fail response: %w", err)
	}
	return &result, nil
}

// PostEvent appends one audit record for the job.
func (c *QueueClient) PostEvent(ctx context.Context, jobID, eventType, message string, metadata map[string]any, errorMessage string) error {
	url := fmt.Sprintf("%s/api/v1/thumbnail-jobs/%s/events", c.baseURL, jobID)
	body := map[string]any{
		"eventType": eventType,
		"message":   message,
	}
	if metadata != nil {
		body["metadata"] = metadata
	}
	if errorMessage != "" {
		body["errorMessage"] = errorMessage
	}

	resp, err := c.postJSON(ctx, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus("post event", resp)
	}
	return nil
}

func (c *QueueClient) postJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	return resp, nil
}

func unexpectedStatus(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, string(snippet))
}
