package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Manifest describes the renderable inputs of one model version as the
// asset store sees them.
type Manifest struct {
	ModelFile TextureFile   `json:"modelFile"`
	Textures  []TextureFile `json:"textures"`
}

// TextureFile is one downloadable file reference. Type and Channel are only
// set for texture entries.
type TextureFile struct {
	FileName string `json:"fileName"`
	Hash     string `json:"hash"`
	Type     int    `json:"textureType,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// AssetClient talks to the content-addressed asset store. Network failures
// here are retried at this layer with backoff and never charged against the
// job's attempt budget.
type AssetClient struct {
	baseURL       string
	httpClient    *http.Client
	logger        *slog.Logger
	retryAttempts int
	retryInterval time.Duration
}

func NewAssetClient(baseURL string, timeout time.Duration, retryAttempts int, retryInterval time.Duration, logger *slog.Logger) *AssetClient {
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &AssetClient{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
		retryAttempts: retryAttempts,
		retryInterval: retryInterval,
	}
}

// FetchManifest returns the model file and texture list for a version.
func (c *AssetClient) FetchManifest(ctx context.Context, modelVersionID int64) (*Manifest, error) {
	url := fmt.Sprintf("%s/api/v1/model-versions/%d/manifest", c.baseURL, modelVersionID)

	var manifest Manifest
	err := c.withRetry(ctx, "fetch manifest", func() error {
		resp, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch manifest: unexpected status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&manifest)
	})
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// DownloadFile fetches one file by content hash.
func (c *AssetClient) DownloadFile(ctx context.Context, hash string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v1/files/%s", c.baseURL, hash)

	var data []byte
	err := c.withRetry(ctx, "download file", func() error {
		resp, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("download %s: unexpected status %d", hash, resp.StatusCode)
		}

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UploadArtifact posts one artifact as multipart form data and returns the
// path the store assigned to it.
func (c *AssetClient) UploadArtifact(ctx context.Context, kind, fileName, contentType string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/api/v1/files?kind=%s", c.baseURL, kind)

	var storedPath string
	err := c.withRetry(ctx, "upload artifact", func() error {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)

		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			return fmt.Errorf("build multipart: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("write multipart: %w", err)
		}
		if err := writer.WriteField("contentType", contentType); err != nil {
			return fmt.Errorf("write multipart field: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close multipart: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("post %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("upload %s: unexpected status %d", fileName, resp.StatusCode)
		}

		var result struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode upload response: %w", err)
		}
		storedPath = result.Path
		return nil
	})
	if err != nil {
		return "", err
	}
	return storedPath, nil
}

func (c *AssetClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return resp, nil
}

func (c *AssetClient) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < c.retryAttempts {
			c.logger.Warn("asset store call failed, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", c.retryAttempts),
				slog.Any("error", lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryInterval * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, c.retryAttempts, lastErr)
}
