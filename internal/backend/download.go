package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mediabatch/mediabatch-agent/internal/pathutil"
)

const partSuffix = ".part"

// Download fetches one job output into destDir and returns the final path.
// An interrupted download leaves a .part file that the next call resumes
// with a Range request.
func (c *HTTPClient) Download(ctx context.Context, batchID, filename, destDir string) (string, error) {
	name := pathutil.SanitizeName(filename, 255)
	if name == "" {
		return "", fmt.Errorf("invalid output filename %q", filename)
	}
	if err := pathutil.ValidateDownloadDir(destDir); err != nil {
		return "", err
	}

	finalPath := filepath.Join(destDir, name)
	partPath := finalPath + partSuffix

	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(batchID, filename), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-Id", c.clientID)
	}
	if offset > 0 {
		req.Header.Set("Range", RangeFrom(offset))
	}

	resp, err := c.transferClient.Do(req)
	if err != nil {
		return "", &NetworkError{Op: "GET download", Err: err}
	}
	defer resp.Body.Close()

	var flags int
	switch resp.StatusCode {
	case http.StatusOK:
		// Full body; the server ignored or did not get a Range header.
		offset = 0
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	case http.StatusPartialContent:
		cr, err := ParseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return "", err
		}
		if cr.Start != offset {
			return "", ErrRangeMismatch
		}
		flags = os.O_WRONLY | os.O_APPEND
	case http.StatusRequestedRangeNotSatisfiable:
		if offset > 0 {
			// The part file already holds the whole output.
			return finalPath, os.Rename(partPath, finalPath)
		}
		fallthrough
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", newAPIError(resp.StatusCode, body)
	}

	f, err := os.OpenFile(partPath, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", partPath, err)
	}

	written, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return "", &NetworkError{Op: "read download", Err: copyErr}
	}
	if closeErr != nil {
		return "", closeErr
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		return "", fmt.Errorf("finalize download: %w", err)
	}

	c.logger.Info("output downloaded",
		"batch_id", batchID,
		"file", name,
		"resumed_at", offset,
		"bytes", written,
	)
	return finalPath, nil
}
