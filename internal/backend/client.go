package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const (
	maxJSONBody  = 4 * 1024 * 1024
	maxErrorBody = 4096
)

// Client is everything the agent needs from the media backend.
type Client interface {
	ScanFolder(ctx context.Context, folderPath string) ([]MediaFile, error)
	ScanAudioFolder(ctx context.Context, folderPath string) ([]MediaFile, error)
	ProcessBatch(ctx context.Context, req BatchTrimRequest) (*JobHandle, error)
	ProcessVideoAudioBatch(ctx context.Context, req MergeRequest) (*JobHandle, error)
	ProcessVoiceAdder(ctx context.Context, req VoiceOverlayRequest) (*JobHandle, error)
	Status(ctx context.Context, batchID string) (*Status, error)
	DownloadURL(batchID, filename string) string
	Download(ctx context.Context, batchID, filename, destDir string) (string, error)
}

// HTTPClient talks to the backend over plain HTTP/JSON.
type HTTPClient struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	// transferClient has no overall timeout; uploads and downloads of media
	// files are bounded by the caller's context instead.
	transferClient *http.Client
	logger         *slog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		transferClient: &http.Client{},
		logger:         logger,
	}
}

// SetClientID tags every request with the agent's persisted id.
func (c *HTTPClient) SetClientID(id string) {
	c.clientID = id
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) ScanFolder(ctx context.Context, folderPath string) ([]MediaFile, error) {
	var resp scanVideosResponse
	if err := c.postJSON(ctx, "/api/scan-folder", scanRequest{FolderPath: folderPath}, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("video folder scanned", "videos", len(resp.Videos))
	return resp.Videos, nil
}

func (c *HTTPClient) ScanAudioFolder(ctx context.Context, folderPath string) ([]MediaFile, error) {
	var resp scanAudiosResponse
	if err := c.postJSON(ctx, "/api/scan-audio-folder", scanRequest{FolderPath: folderPath}, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("audio folder scanned", "audios", len(resp.Audios))
	return resp.Audios, nil
}

func (c *HTTPClient) ProcessBatch(ctx context.Context, req BatchTrimRequest) (*JobHandle, error) {
	var handle JobHandle
	if err := c.postJSON(ctx, "/api/process-batch", req, &handle); err != nil {
		return nil, err
	}
	c.logger.Info("batch job submitted", "batch_id", handle.BatchID, "output_count", req.OutputCount)
	return &handle, nil
}

func (c *HTTPClient) ProcessVideoAudioBatch(ctx context.Context, req MergeRequest) (*JobHandle, error) {
	var handle JobHandle
	if err := c.postJSON(ctx, "/api/process-video-audio-batch", req, &handle); err != nil {
		return nil, err
	}
	c.logger.Info("merge job submitted", "batch_id", handle.BatchID)
	return &handle, nil
}

func (c *HTTPClient) Status(ctx context.Context, batchID string) (*Status, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/status/"+url.PathEscape(batchID), nil)
	if err != nil {
		return nil, err
	}

	var status Status
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DownloadURL is the link rendered for a finished output.
func (c *HTTPClient) DownloadURL(batchID, filename string) string {
	return DownloadURL(c.baseURL, batchID, filename)
}

// DownloadURL builds {base}/api/download/{batch_id}/{filename}.
func DownloadURL(baseURL, batchID, filename string) string {
	return fmt.Sprintf("%s/api/download/%s/%s", baseURL, url.PathEscape(batchID), url.PathEscape(filename))
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.clientID != "" {
		req.Header.Set("X-Client-Id", c.clientID)
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Any other status becomes
// an *APIError; transport and decode failures become a *NetworkError.
func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	return c.doWith(c.httpClient, req, out)
}

func (c *HTTPClient) doWith(hc *http.Client, req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return &NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", req.Header.Get("X-Request-Id"),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, respBody)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return &NetworkError{Op: "read response", Err: err}
	}
	if err := decodeJSON(respBody, out); err != nil {
		return &NetworkError{Op: "decode response", Err: err}
	}
	return nil
}

func decodeJSON(body []byte, out interface{}) error {
	return json.Unmarshal(body, out)
}
